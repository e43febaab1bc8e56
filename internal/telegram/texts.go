package telegram

// Reply keyboard buttons.
const (
	btnHelp    = "Help"
	btnHistory = "My History"
	btnDelete  = "Delete my history"
)

const welcomeText = `Сәлем! Мен – SalyqBot.
ЖК (жеке кәсіпкер) ретінде салыққа қатысты барлық сұрақтарыңызға көмектесемін.
НДС, режимдер, тіркеу, декларациялар немесе айыппұлдар туралы сұраңыз — мен түсінікті және нақты жауап беремін.

Тілді қалауыңызға қарай ауыстыра аласыз. Қазақша немесе орысша жауап беремін.


---


Здравствуйте! Я – SalyqBot.
Я помогу вам разобраться с налогами для ИП в Казахстане.
Спрашивайте про НДС, налоговые режимы, регистрацию, декларации или штрафы — отвечу просто и по делу.

Я автоматически отвечаю на том языке, на котором вы пишете — на русском или казахском.`

const helpText = `Сізге көмектесу үшін осындамын. Салық төлеу, есеп беру немесе ИП мәртебесі бойынша сұрақтарыңызды қойыңыз. Мен AI арқылы жауап беремін.

Я здесь, чтобы помочь вам. Задавайте вопросы по налогам, отчетности или статусу ИП — я отвечу с помощью AI.

Просто задайте вопрос, например:
• "Какие налоги я должен платить как ИП?"
• "Как сдать отчет, если я на патенте?"
• "Нужен ли онлайн-ККМ?"

Бот поймёт ваш вопрос и даст чёткий, понятный ответ.`

const (
	adminOnlyText      = "This command is available to the administrator only."
	photoFailedText    = "ERROR: could not download the photo, please try again"
	unsupportedMsgText = "Please send a text question or a photo."
)
