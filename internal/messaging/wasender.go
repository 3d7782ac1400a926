package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Constants for WaSenderService configuration
const (
	// DefaultBaseURL is the WaSender API endpoint used when none is configured.
	DefaultBaseURL = "https://wasenderapi.com/api"
	// DefaultSendTimeout bounds each outbound send.
	DefaultSendTimeout = 30 * time.Second
	// MaxMessageLength is the WhatsApp text limit; longer bodies are truncated.
	MaxMessageLength = 4000
)

// ErrAPIKeyMissing indicates the gateway API key was not configured.
var ErrAPIKeyMissing = errors.New("wasender API key not configured")

// ErrEmptyMessage indicates an attempt to send a blank message body.
var ErrEmptyMessage = errors.New("empty message body")

// WaSenderOption configures a WaSenderService.
type WaSenderOption func(*WaSenderService)

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(url string) WaSenderOption {
	return func(s *WaSenderService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithSendTimeout overrides the per-send timeout.
func WithSendTimeout(d time.Duration) WaSenderOption {
	return func(s *WaSenderService) {
		s.client.SetTimeout(d)
	}
}

// WaSenderService implements Service against the WaSender REST gateway.
type WaSenderService struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// NewWaSenderService creates a gateway client with the given API key.
func NewWaSenderService(apiKey string, opts ...WaSenderOption) *WaSenderService {
	s := &WaSenderService{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client:  resty.New().SetTimeout(DefaultSendTimeout),
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("WaSenderService created", "baseURL", s.baseURL, "apiKeySet", s.apiKey != "")
	return s
}

// SendMessage posts a text message to the gateway's send endpoint.
func (s *WaSenderService) SendMessage(ctx context.Context, to string, body string) error {
	if s.apiKey == "" {
		return ErrAPIKeyMissing
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	if runes := []rune(body); len(runes) > MaxMessageLength {
		slog.Warn("WaSenderService.SendMessage: truncating oversized message", "to", to, "length", len(runes))
		body = string(runes[:MaxMessageLength-10]) + "..."
	}

	slog.Debug("WaSenderService.SendMessage: sending", "to", to, "body_length", len(body))
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(sendRequest{To: to, Text: body}).
		Post(s.baseURL + "/send-message")
	if err != nil {
		slog.Error("WaSenderService.SendMessage: request failed", "error", err, "to", to)
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	if resp.IsError() {
		slog.Error("WaSenderService.SendMessage: gateway rejected message", "to", to, "status", resp.StatusCode(), "body", truncateForLog(resp.String()))
		return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode())
	}

	slog.Info("WaSenderService.SendMessage: message sent", "to", to)
	return nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
