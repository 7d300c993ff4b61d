package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/commands"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

const (
	// DefaultGraphURL is the Graph API version the client talks to.
	DefaultGraphURL = "https://graph.facebook.com/v21.0"

	// MaxMessageLen is the Cloud API limit for a text body.
	MaxMessageLen = 4096

	defaultTimeout = 15 * time.Second
	maxWebhookBody = 1 << 20
)

// ErrDisabled is returned by send operations when the client is not configured.
var ErrDisabled = errors.New("whatsapp is not configured")

// MessageHandler answers incoming messages. *commands.Handler implements it.
type MessageHandler interface {
	Handle(ctx context.Context, msg commands.Message, reply commands.ReplyFunc)
}

// Config holds the Cloud API credentials.
type Config struct {
	PhoneID     string
	Token       string
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 checks when set.
	AppSecret string
}

// Client sends messages through the Cloud API and serves its webhook.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
	handler    MessageHandler
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the parent logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "whatsapp") }
}

// NewClient creates a Cloud API client. An incomplete Config yields a client
// whose Enabled reports false.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultGraphURL,
		logger:     logging.Component(nil, "whatsapp"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the phone id and token are set.
func (c *Client) Enabled() bool {
	return c.cfg.PhoneID != "" && c.cfg.Token != ""
}

// SetHandler sets the handler for incoming messages.
func (c *Client) SetHandler(h MessageHandler) {
	c.handler = h
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText sends a text message to a phone number. Bodies above
// MaxMessageLen are cut.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	to = strings.TrimPrefix(strings.TrimSpace(to), "+")
	if to == "" {
		return errors.New("whatsapp: empty recipient")
	}

	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: cut(text, MaxMessageLen)},
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Broadcast sends an article to a phone number. The body is truncated at
// commands.WhatsAppArticleLimit.
func (c *Client) Broadcast(ctx context.Context, to, title, body string) error {
	if len(body) > commands.WhatsAppArticleLimit {
		body = cut(body, commands.WhatsAppArticleLimit) + "..."
	}
	return c.SendText(ctx, to, "📰 *"+title+"*\n\n"+body)
}

// VerifyHandler answers the GET subscription handshake.
func (c *Client) VerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("hub.mode") != "subscribe" || c.cfg.VerifyToken == "" || q.Get("hub.verify_token") != c.cfg.VerifyToken {
			c.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
			http.Error(w, "verification failed", http.StatusForbidden)
			return
		}
		c.logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
	}
}

// WebhookHandler accepts message notifications. Messages are handled in the
// background under ctx so the API gets a quick 200.
func (c *Client) WebhookHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if c.cfg.AppSecret != "" && !ValidSignature(c.cfg.AppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
			c.logger.Warn("webhook signature mismatch")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		var n notification
		if err := json.Unmarshal(body, &n); err != nil {
			c.logger.Warn("bad webhook payload", "error", err)
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		for _, in := range n.messages() {
			c.dispatch(ctx, in)
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Wait blocks until in-flight messages are handled.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) dispatch(ctx context.Context, in incoming) {
	if c.handler == nil {
		return
	}
	msg := in.toMessage()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.handler.Handle(ctx, msg, func(r commands.Reply) {
			if err := c.SendText(ctx, in.From, r.Text); err != nil {
				c.logger.Error("failed to send reply", "to", in.From, "error", err)
			}
		})
	}()
}

// ValidSignature checks an X-Hub-Signature-256 header against body.
func ValidSignature(secret string, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, digest(secret, body))
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(digest(secret, body))
}

func digest(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

type notification struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type incoming struct {
	From string
	Name string
	Text string
}

// messages flattens the text messages in a notification. Status updates
// and non-text messages are skipped.
func (n notification) messages() []incoming {
	var out []incoming
	for _, e := range n.Entry {
		for _, ch := range e.Changes {
			if ch.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(ch.Value.Contacts))
			for _, ct := range ch.Value.Contacts {
				names[ct.WaID] = ct.Profile.Name
			}
			for _, m := range ch.Value.Messages {
				if m.Type != "text" || strings.TrimSpace(m.Text.Body) == "" {
					continue
				}
				out = append(out, incoming{From: m.From, Name: names[m.From], Text: m.Text.Body})
			}
		}
	}
	return out
}

func (in incoming) toMessage() commands.Message {
	id, _ := strconv.ParseInt(in.From, 10, 64)
	return commands.Message{
		UserID:    id,
		Username:  in.From,
		Name:      in.Name,
		Text:      in.Text,
		Transport: commands.WhatsApp,
	}
}

// cut trims s to at most n bytes on a rune boundary.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
