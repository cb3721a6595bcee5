// Package telegram delivers reports through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/usecase"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Telegram rejects messages longer than this many characters.
const maxMessageLength = 4096

// Messages go out as plain text; report Markdown is not valid Telegram
// entity markup.
type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notifier implements usecase.Notifier with sendMessage.
type Notifier struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  zerolog.Logger
}

// Config configures a Notifier.
type Config struct {
	BaseURL string
	Token   string
	ChatID  string
	Timeout time.Duration
}

// New creates a Notifier.
func New(cfg Config, logger zerolog.Logger) *Notifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// Send posts text to the configured chat. Failures are reported through
// ok and detail, never as an error.
func (n *Notifier) Send(ctx context.Context, text string) (bool, string) {
	if n.token == "" || n.chatID == "" {
		return false, "telegram is not configured"
	}
	if runes := []rune(text); len(runes) > maxMessageLength {
		text = string(runes[:maxMessageLength-1]) + "…"
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: n.chatID, Text: text})
	if err != nil {
		return false, err.Error()
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn().Err(err).Msg("telegram request failed")
		return false, "telegram unreachable"
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Sprintf("telegram returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		n.logger.Warn().Int("status", resp.StatusCode).Str("description", out.Description).Msg("telegram rejected message")
		if out.Description == "" {
			out.Description = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return false, out.Description
	}
	return true, "sent"
}

var _ usecase.Notifier = (*Notifier)(nil)
