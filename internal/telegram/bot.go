package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"salyqbot/internal/conversation"
	"salyqbot/internal/logging"
)

// Conversation is the part of the orchestrator the bot talks to.
type Conversation interface {
	Handle(ctx context.Context, in conversation.Inbound, r conversation.Replier) error
	Register(ctx context.Context, userID int64) error
	History(ctx context.Context, userID int64) (string, error)
	Clear(ctx context.Context, userID int64) (string, error)
}

// ReportFunc renders the admin usage report.
type ReportFunc func(ctx context.Context) (string, error)

type Bot struct {
	api         *tgbotapi.BotAPI
	s           sender
	conv        Conversation
	adminUserID int64
	report      ReportFunc
	httpClient  *http.Client

	sem chan struct{}
	wg  sync.WaitGroup
}

func New(botToken string, conv Conversation, adminUserID int64, maxConcurrent int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return newBot(api, botAPISender{api: api}, conv, adminUserID, maxConcurrent), nil
}

func newBot(api *tgbotapi.BotAPI, s sender, conv Conversation, adminUserID int64, maxConcurrent int) *Bot {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bot{
		api:         api,
		s:           s,
		conv:        conv,
		adminUserID: adminUserID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		sem:         make(chan struct{}, maxConcurrent),
	}
}

func (b *Bot) SetReportFunction(f ReportFunc) {
	b.report = f
}

// Start polls updates until ctx is cancelled, then waits for in-flight messages.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logging.L().Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch runs each message on its own goroutine, at most cap(b.sem) at a time.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.sem }()
		defer func() {
			if r := recover(); r != nil {
				logging.L().Error("panic while handling message",
					zap.Int64("user_id", msg.From.ID),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()
		b.handleMessage(ctx, msg)
	}()
}

// SendReport delivers the usage report to the admin chat.
func (b *Bot) SendReport(ctx context.Context) error {
	if b.adminUserID == 0 {
		return errors.New("admin user is not configured")
	}
	if b.report == nil {
		return errors.New("report function is not set")
	}
	text, err := b.report(ctx)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	return b.sendText(b.adminUserID, 0, text, false)
}

// sendText splits long text into Telegram-sized chunks. Only the first chunk
// quotes replyTo.
func (b *Bot) sendText(chatID int64, replyTo int, text string, withKeyboard bool) error {
	for i, chunk := range splitText(text, maxMessageLen) {
		out := tgbotapi.NewMessage(chatID, chunk)
		if i == 0 && replyTo != 0 {
			out.ReplyToMessageID = replyTo
		}
		if withKeyboard {
			out.ReplyMarkup = mainKeyboard()
		}
		if _, err := b.s.Send(out); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if err := b.sendText(chatID, 0, text, true); err != nil {
		logging.L().Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHelp),
			tgbotapi.NewKeyboardButton(btnHistory),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnDelete),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
