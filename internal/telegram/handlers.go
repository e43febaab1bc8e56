package telegram

import (
	"context"
	"errors"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"salyqbot/internal/conversation"
	"salyqbot/internal/llm"
	"salyqbot/internal/logging"
)

const maxMessageLen = 4096

// chatReplier answers in the chat the message came from, quoting it.
type chatReplier struct {
	b       *Bot
	chatID  int64
	replyTo int
}

func (r chatReplier) Reply(_ context.Context, text string) error {
	return r.b.sendText(r.chatID, r.replyTo, text, false)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	ctx = logging.NewRequestContext(ctx, msg.From.ID)

	if msg.IsCommand() {
		if b.handleCommand(ctx, msg) {
			return
		}
	}

	switch msg.Text {
	case btnHelp:
		b.sendMessage(msg.Chat.ID, helpText)
		return
	case btnHistory:
		b.handleHistory(ctx, msg)
		return
	case btnDelete:
		b.handleDelete(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}
	if msg.Text != "" {
		b.ask(ctx, msg, conversation.Inbound{UserID: msg.From.ID, Text: msg.Text})
		return
	}
	b.sendMessage(msg.Chat.ID, unsupportedMsgText)
}

// handleCommand reports whether the command was consumed. Unknown commands are
// treated as plain questions.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	switch msg.Command() {
	case "start":
		if err := b.conv.Register(ctx, msg.From.ID); err != nil {
			logging.WithCtx(ctx).Error("failed to register user", zap.Error(err))
			b.sendMessage(msg.Chat.ID, conversation.StorageUnavailable)
			return true
		}
		b.sendMessage(msg.Chat.ID, welcomeText)
		return true
	case "help":
		b.sendMessage(msg.Chat.ID, helpText)
		return true
	case "report":
		b.handleReportCommand(ctx, msg)
		return true
	}
	return false
}

func (b *Bot) handleReportCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From.ID != b.adminUserID {
		b.sendMessage(msg.Chat.ID, adminOnlyText)
		return
	}
	if b.report == nil {
		b.sendMessage(msg.Chat.ID, "Reports are not configured.")
		return
	}
	text, err := b.report(ctx)
	if err != nil {
		logging.WithCtx(ctx).Error("report generation failed", zap.Error(err))
		b.sendMessage(msg.Chat.ID, "ERROR: report generation failed: "+err.Error())
		return
	}
	b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	blob, err := b.conv.History(ctx, msg.From.ID)
	if err != nil {
		logging.WithCtx(ctx).Error("failed to read history", zap.Error(err))
		blob = conversation.StorageUnavailable
	}
	if err := b.sendText(msg.Chat.ID, msg.MessageID, blob, true); err != nil {
		logging.WithCtx(ctx).Warn("failed to send history", zap.Error(err))
	}
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) {
	outcome, err := b.conv.Clear(ctx, msg.From.ID)
	if err != nil {
		logging.WithCtx(ctx).Error("failed to clear history", zap.Error(err))
		outcome = conversation.StorageUnavailable
	}
	if err := b.sendText(msg.Chat.ID, msg.MessageID, outcome, true); err != nil {
		logging.WithCtx(ctx).Warn("failed to send clear outcome", zap.Error(err))
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	log := logging.WithCtx(ctx)
	photo := largestPhoto(msg.Photo)

	url, err := b.s.GetFileDirectURL(photo.FileID)
	if err != nil {
		log.Error("failed to resolve photo", zap.String("file_id", photo.FileID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, photoFailedText)
		return
	}
	data, err := b.download(ctx, url)
	if err != nil {
		log.Error("failed to download photo", zap.String("file_id", photo.FileID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, photoFailedText)
		return
	}
	log.Info("photo received", zap.Int("bytes", len(data)), zap.Bool("caption", msg.Caption != ""))

	b.ask(ctx, msg, conversation.Inbound{
		UserID: msg.From.ID,
		Text:   msg.Caption,
		Image:  &llm.Image{MIMEType: "image/jpeg", Data: data},
	})
}

func (b *Bot) ask(ctx context.Context, msg *tgbotapi.Message, in conversation.Inbound) {
	r := chatReplier{b: b, chatID: msg.Chat.ID, replyTo: msg.MessageID}
	err := b.conv.Handle(ctx, in, r)
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		b.sendMessage(msg.Chat.ID, unsupportedMsgText)
	case err != nil:
		logging.WithCtx(ctx).Warn("message handling finished with error", zap.Error(err))
	}
}

// largestPhoto picks the biggest of the sizes Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[len(sizes)-1]
	for _, p := range sizes {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

// splitText cuts text into chunks of at most limit runes, preferring to break
// after a newline.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := lastNewline(runes[:limit]); i >= limit/2 {
			cut = i + 1
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
