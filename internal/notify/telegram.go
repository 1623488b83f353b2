package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Telegram Bot API endpoint
const DefaultBaseURL = "https://api.telegram.org"

// SendError is returned when Telegram answers with a non-200 status
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("telegram API error (status %d): %s", e.StatusCode, e.Body)
}

type sendMessagePayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Telegram sends messages through a bot
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
}

// TelegramOption configures the Telegram client
type TelegramOption func(*Telegram)

// WithBaseURL overrides the Bot API endpoint
func WithBaseURL(baseURL string) TelegramOption {
	return func(t *Telegram) {
		if baseURL != "" {
			t.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		if client != nil {
			t.client = client
		}
	}
}

// NewTelegram constructs a client for the bot identified by token
func NewTelegram(token string, opts ...TelegramOption) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	t := &Telegram{
		token:   token,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SendMessage posts an HTML-formatted message to chatID
func (t *Telegram) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessagePayload{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// *url.Error would echo the token embedded in the URL
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("calling telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &SendError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
