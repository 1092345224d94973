// Package telegram sends order notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/domain/order"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Config configures the bot used for operator notifications.
type Config struct {
	Token   string
	ChatID  string
	BaseURL string
}

// Client posts messages to a single chat.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ order.Notifier = (*Client)(nil)

// New creates a Client. The HTTP client's timeout and the request context
// bound every call.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Enabled reports whether both the bot token and the chat id are set.
func (c *Client) Enabled() bool {
	return c.cfg.Token != "" && c.cfg.ChatID != ""
}

// NotifyOrder implements order.Notifier.
func (c *Client) NotifyOrder(ctx context.Context, s *order.Summary) bool {
	return c.Send(ctx, Format(s))
}

// Send posts an HTML message. It returns true only when the API answered
// 200; every failure is logged.
func (c *Client) Send(ctx context.Context, text string) bool {
	lg := zctx.From(ctx).Named("telegram")
	if !c.Enabled() {
		lg.Warn("Telegram is not configured, message dropped")
		return false
	}

	form := url.Values{
		"chat_id":                  {c.cfg.ChatID},
		"text":                     {text},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}
	endpoint := c.cfg.BaseURL + "/bot" + c.cfg.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		lg.Error("Build sendMessage request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		// The error text embeds the URL, which carries the bot token.
		lg.Error("Telegram sendMessage failed", zap.String("error", redact(err.Error(), c.cfg.Token)))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		lg.Error("Telegram sendMessage rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	lg.Info("Telegram message sent", zap.Int("length", len(text)))
	return true
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
