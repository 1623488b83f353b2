package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/zombor/meter-reader/internal/gateway"
	"github.com/zombor/meter-reader/internal/metrics"
)

// PhotoStore keeps uploaded photos and returns the URL they are served from
type PhotoStore interface {
	Store(data []byte, contentType string) (string, error)
}

type scanRequest struct {
	Image string `json:"image"`
}

// Handler serves the recognition endpoint over API-Gateway proxy events
type Handler struct {
	scanner Scanner
	photos  PhotoStore
}

// NewHandler creates a recognition Handler. photos may be nil.
func NewHandler(scanner Scanner, photos PhotoStore) *Handler {
	return &Handler{scanner: scanner, photos: photos}
}

// Handle accepts {"image": "<base64 or data URL>"} and answers with the recognised values
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodOptions:
		return gateway.Preflight("POST, OPTIONS"), nil
	case http.MethodPost:
	default:
		return gateway.MethodNotAllowed(), nil
	}

	body, err := gateway.Body(req)
	if err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid JSON"), nil
	}
	if strings.TrimSpace(body) == "" {
		return gateway.Error(http.StatusBadRequest, "image is required"), nil
	}

	var scanReq scanRequest
	if err := json.Unmarshal([]byte(body), &scanReq); err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid JSON"), nil
	}
	if scanReq.Image == "" {
		return gateway.Error(http.StatusBadRequest, "image is required"), nil
	}

	contentType, encoded := splitDataURL(scanReq.Image)
	imageData, err := decodeBase64(encoded)
	if err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid image encoding"), nil
	}
	if contentType == "" {
		contentType = http.DetectContentType(imageData)
	}

	start := time.Now()
	data, err := h.scanner.ScanMeter(ctx, imageData, contentType)
	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case data.Error != "":
		result = metrics.ResultFallback
	}
	metrics.ObserveScan(h.scanner.Name(), result, time.Since(start))

	if err != nil {
		slog.Error("Failed to scan meter photo", "scanner", h.scanner.Name(), "error", err)
		return gateway.Error(http.StatusInternalServerError, err.Error()), nil
	}

	if h.photos != nil {
		url, err := h.photos.Store(imageData, contentType)
		if err != nil {
			slog.Warn("Failed to store meter photo", "error", err)
		} else {
			data.PhotoURL = url
		}
	}

	slog.Info("Scanned meter photo", "scanner", h.scanner.Name(), "meter_number", data.MeterNumber, "demo", data.Demo)
	return gateway.JSON(http.StatusOK, data), nil
}

// splitDataURL separates "data:<mime>;base64,<payload>" into its MIME type and payload.
// Anything after the first comma is treated as the payload.
func splitDataURL(s string) (string, string) {
	prefix, payload, found := strings.Cut(s, ",")
	if !found {
		return "", strings.TrimSpace(s)
	}
	var contentType string
	if rest, ok := strings.CutPrefix(prefix, "data:"); ok {
		contentType, _, _ = strings.Cut(rest, ";")
	}
	return contentType, strings.TrimSpace(payload)
}

func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
