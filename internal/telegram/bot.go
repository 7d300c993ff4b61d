package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/commands"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

// MaxMessageLen is the chunk size for long replies. Telegram rejects
// messages above 4096 characters.
const MaxMessageLen = 4000

// ErrDisabled is returned by Run when the bot has no token.
var ErrDisabled = errors.New("telegram bot is disabled")

// MessageHandler answers incoming messages. *commands.Handler implements it.
type MessageHandler interface {
	Handle(ctx context.Context, msg commands.Message, reply commands.ReplyFunc)
}

// Bot receives commands and sends replies, broadcasts and photos.
type Bot struct {
	api      *tgbotapi.BotAPI
	chatID   int64
	disabled bool
	handler  MessageHandler
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// Option configures a Bot.
type Option func(*botOptions)

type botOptions struct {
	endpoint string
	logger   *slog.Logger
}

// WithAPIEndpoint overrides the Bot API endpoint format.
func WithAPIEndpoint(endpoint string) Option {
	return func(o *botOptions) { o.endpoint = endpoint }
}

// WithLogger sets the parent logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *botOptions) { o.logger = l }
}

// NewBot creates a new Telegram bot instance. chatID is the broadcast
// target and may be empty. If token is empty, returns a no-op bot that logs
// messages instead of sending.
func NewBot(token, chatID string, opts ...Option) (*Bot, error) {
	o := botOptions{endpoint: tgbotapi.APIEndpoint}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.Component(o.logger, "telegram")

	if token == "" {
		logger.Warn("no token provided, running in disabled mode (logging only)")
		return &Bot{disabled: true, logger: logger}, nil
	}

	var parsedChatID int64
	if chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
		}
		parsedChatID = id
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, o.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	logger.Info("authorized", "username", api.Self.UserName)

	return &Bot{
		api:    api,
		chatID: parsedChatID,
		logger: logger,
	}, nil
}

// SetHandler sets the handler for incoming messages.
func (b *Bot) SetHandler(h MessageHandler) {
	b.handler = h
}

// Disabled reports whether the bot only logs.
func (b *Bot) Disabled() bool {
	return b.disabled
}

// SendAlert sends a formatted alert with bold title to the broadcast chat.
func (b *Bot) SendAlert(title, message string) error {
	formatted := fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(title), message)
	return b.send(b.chatID, formatted, true)
}

// Broadcast sends an article to the broadcast chat.
func (b *Bot) Broadcast(title, body string) error {
	if b.chatID == 0 && !b.disabled {
		return errors.New("TELEGRAM_CHAT_ID is not set")
	}
	if err := b.send(b.chatID, "📰 *"+escapeMarkdown(title)+"*", true); err != nil {
		return err
	}
	return b.send(b.chatID, body, false)
}

// SendPhoto uploads an image to the broadcast chat.
func (b *Bot) SendPhoto(name string, data []byte, caption string) error {
	if b.disabled {
		b.logger.Info("(disabled) photo", "name", name, "bytes", len(data), "caption", caption)
		return nil
	}
	if b.chatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is not set")
	}
	photo := tgbotapi.NewPhoto(b.chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("failed to send photo", "name", name, "error", err)
		return fmt.Errorf("telegram photo failed: %w", err)
	}
	return nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.disabled {
		return ErrDisabled
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// WebhookHandler returns the handler for Telegram's webhook POSTs. Updates
// are processed in the background under ctx so Telegram gets a quick 200.
func (b *Bot) WebhookHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b.disabled {
			http.Error(w, "telegram disabled", http.StatusServiceUnavailable)
			return
		}
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			b.logger.Warn("bad webhook update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.dispatch(ctx, *update)
		w.WriteHeader(http.StatusOK)
	}
}

// Wait blocks until in-flight updates are handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg, chatID, ok := toMessage(update)
	if !ok || b.handler == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handler.Handle(ctx, msg, func(r commands.Reply) {
			_ = b.Reply(chatID, r)
		})
	}()
}

func toMessage(update tgbotapi.Update) (commands.Message, int64, bool) {
	m := update.Message
	if m == nil || m.Text == "" || m.From == nil {
		return commands.Message{}, 0, false
	}
	name := strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	return commands.Message{
		UserID:    m.From.ID,
		Username:  m.From.UserName,
		Name:      name,
		Text:      m.Text,
		Transport: commands.Telegram,
	}, m.Chat.ID, true
}

// Reply sends r to chatID, split into chunks of MaxMessageLen.
func (b *Bot) Reply(chatID int64, r commands.Reply) error {
	for _, chunk := range splitMessage(r.Text, MaxMessageLen) {
		if err := b.send(chatID, chunk, r.Markdown); err != nil {
			return err
		}
	}
	return nil
}

// send handles the actual message sending with graceful error handling.
// A Markdown message Telegram cannot parse is resent as plain text.
func (b *Bot) send(chatID int64, text string, useMarkdown bool) error {
	if b.disabled {
		b.logger.Info("(disabled) message", "chat_id", chatID, "text", text)
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if useMarkdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	_, err := b.api.Send(msg)
	if err != nil && useMarkdown && isParseError(err) {
		b.logger.Warn("markdown rejected, resending as plain text", "chat_id", chatID)
		msg.ParseMode = ""
		_, err = b.api.Send(msg)
	}
	if err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
		return fmt.Errorf("telegram send failed: %w", err)
	}

	return nil
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "parse entities")
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// line breaks and never splitting a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// markdownReplacer escapes the characters legacy Markdown treats as markup.
var markdownReplacer = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// escapeMarkdown escapes special Markdown characters in text.
func escapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}
