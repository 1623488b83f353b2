package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/zombor/meter-reader/internal/gateway"
	"github.com/zombor/meter-reader/internal/metrics"
)

// Sender delivers a rendered message to a chat
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// ChatID is a Telegram chat identifier given either as a JSON string or a number
type ChatID string

// UnmarshalJSON accepts "12345", "@channel" or 12345
func (c *ChatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ChatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chatId must be a string or a number: %w", err)
	}
	*c = ChatID(n.String())
	return nil
}

type notifyRequest struct {
	ChatID      ChatID          `json:"chatId"`
	MeterNumber string          `json:"meterNumber"`
	Reading     json.RawMessage `json:"reading"`
}

// Handler serves the notification endpoint over API-Gateway proxy events
type Handler struct {
	sender   Sender
	template *Template
}

// NewHandler creates a notification Handler. A nil sender means no bot token is configured.
func NewHandler(sender Sender, template *Template) *Handler {
	return &Handler{sender: sender, template: template}
}

// Handle renders the reading message and sends it to the requested chat
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodOptions:
		return gateway.Preflight("POST, OPTIONS"), nil
	case http.MethodPost:
	default:
		return gateway.MethodNotAllowed(), nil
	}

	if h.sender == nil {
		return gateway.Error(http.StatusBadRequest, "TELEGRAM_BOT_TOKEN not configured"), nil
	}

	body, err := gateway.Body(req)
	if err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid JSON"), nil
	}
	if strings.TrimSpace(body) == "" {
		body = "{}"
	}

	var notifyReq notifyRequest
	if err := json.Unmarshal([]byte(body), &notifyReq); err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid JSON"), nil
	}

	reading, ok := readingText(notifyReq.Reading)
	if notifyReq.ChatID == "" || notifyReq.MeterNumber == "" || !ok {
		return gateway.Error(http.StatusBadRequest, "chatId, meterNumber and reading are required"), nil
	}

	text, err := h.template.Render(TemplateData{MeterNumber: notifyReq.MeterNumber, Reading: reading})
	if err != nil {
		slog.Error("Failed to render notification", "error", err)
		return gateway.Error(http.StatusInternalServerError, err.Error()), nil
	}

	if err := h.sender.SendMessage(ctx, string(notifyReq.ChatID), text); err != nil {
		metrics.IncNotification(metrics.ResultError)

		details := err.Error()
		var sendErr *SendError
		if errors.As(err, &sendErr) {
			details = sendErr.Body
		}
		slog.Error("Failed to send Telegram message", "chat_id", notifyReq.ChatID, "error", err)
		return gateway.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Failed to send Telegram message",
			"details": details,
		}), nil
	}

	metrics.IncNotification(metrics.ResultSuccess)
	slog.Info("Sent reading notification", "chat_id", notifyReq.ChatID, "meter_number", notifyReq.MeterNumber)
	return gateway.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Notification sent",
	}), nil
}

// readingText renders the reading as sent by the client. Absent and null readings
// are missing; zero is a valid reading.
func readingText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}
