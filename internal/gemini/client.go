package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

const (
	defaultTimeout  = 10 * time.Second
	temperature     = 0.5
	maxOutputTokens = 500
)

var (
	// ErrExhausted means every key and model combination failed.
	ErrExhausted = errors.New("gemini: all keys and models exhausted")
	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("gemini: empty prompt")
	// ErrNoKeys is returned when the client has no API keys.
	ErrNoKeys = errors.New("gemini: no API keys configured")

	errEmptyText = errors.New("gemini: empty text in response")
)

// Client calls generateContent across a ladder of API keys and models.
// One SDK client is kept per key. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	keys       []string
	models     []string
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host. Empty keeps the SDK default.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client handed to the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds a single generateContent call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the parent logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "gemini") }
}

// NewClient creates a client for the given keys and model ladder.
func NewClient(keys, models []string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		keys:       append([]string(nil), keys...),
		models:     append([]string(nil), models...),
		logger:     logging.Component(nil, "gemini"),
		clients:    make(map[string]*genai.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Keys returns how many API keys are configured.
func (c *Client) Keys() int { return len(c.keys) }

// Models returns how many models are in the ladder.
func (c *Client) Models() int { return len(c.models) }

// Generate returns the first text produced for prompt. For every key the
// models are tried in order. Rate limit, auth and connection failures move
// on to the next key; unknown models, timeouts and bad payloads move on to
// the next model. When nothing answers, the error wraps ErrExhausted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if len(c.keys) == 0 {
		return "", ErrNoKeys
	}

keys:
	for ki, key := range c.keys {
		sdk, err := c.client(ctx, key)
		if err != nil {
			c.logger.Warn("client setup failed, trying next key", "key", ki+1, "error", err)
			continue
		}
		for _, model := range c.models {
			text, err := c.call(ctx, sdk, model, prompt)
			if err == nil {
				c.logger.Debug("generated", "key", ki+1, "model", model, "chars", len(text))
				return text, nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			var apiErr genai.APIError
			switch {
			case errors.As(err, &apiErr):
				switch apiErr.Code {
				case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
					c.logger.Warn("key rejected, trying next key", "key", ki+1, "model", model, "status", apiErr.Code)
					continue keys
				default:
					c.logger.Warn("model unavailable, trying next model", "key", ki+1, "model", model, "status", apiErr.Code)
				}
			case isTimeout(err):
				c.logger.Warn("request timed out, trying next model", "key", ki+1, "model", model)
			case isConnection(err):
				c.logger.Warn("connection failed, trying next key", "key", ki+1, "model", model, "error", err)
				continue keys
			default:
				c.logger.Warn("unusable response, trying next model", "key", ki+1, "model", model, "error", err)
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrExhausted, ExhaustedReason(len(c.keys), len(c.models)))
}

// ExhaustedReason is the user-facing explanation once the ladder is used up.
func ExhaustedReason(keys, models int) string {
	return fmt.Sprintf("Semua %d API key dan %d model tidak tersedia", keys, models)
}

func (c *Client) client(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sdk, ok := c.clients[key]; ok {
		return sdk, nil
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL, Timeout: c.timeoutOption()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.clients[key] = sdk
	return sdk, nil
}

func (c *Client) call(ctx context.Context, sdk *genai.Client, model, prompt string) (string, error) {
	resp, err := sdk.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errEmptyText
	}
	return text, nil
}

func (c *Client) timeoutOption() *time.Duration {
	if c.timeout <= 0 {
		return nil
	}
	return genai.Ptr(c.timeout)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnection(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}
