package reading

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/zombor/meter-reader/internal/gateway"
)

const allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"

// Handler serves the readings resource over API-Gateway proxy events
type Handler struct {
	service *Service
}

// NewHandler creates a readings Handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Handle dispatches on the HTTP method. GET on a path ending in /export or /stats
// renders a download or a per-meter summary instead of the plain list.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodOptions:
		return gateway.Preflight(allowedMethods), nil
	case http.MethodGet:
		switch {
		case strings.HasSuffix(req.Path, "/export"):
			return h.handleExport(ctx, req), nil
		case strings.HasSuffix(req.Path, "/stats"):
			return h.handleStats(ctx, req), nil
		}
		return h.handleList(ctx, req), nil
	case http.MethodPost:
		return h.handleCreate(ctx, req), nil
	case http.MethodPut:
		return h.handleUpdate(ctx, req), nil
	case http.MethodDelete:
		return h.handleDelete(ctx, req), nil
	default:
		return gateway.MethodNotAllowed(), nil
	}
}

func (h *Handler) handleList(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	readings, err := h.service.List(ctx, gateway.QueryParam(req, "userId"))
	if err != nil {
		return errorResponse(err)
	}
	return gateway.JSON(http.StatusOK, map[string]any{"readings": readings})
}

func (h *Handler) handleCreate(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body CreateRequest
	if resp, ok := decodeBody(req, &body); !ok {
		return resp
	}

	r, err := h.service.Create(ctx, body)
	if err != nil {
		return errorResponse(err)
	}
	return gateway.JSON(http.StatusCreated, map[string]any{"reading": r})
}

func (h *Handler) handleUpdate(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body UpdateRequest
	if resp, ok := decodeBody(req, &body); !ok {
		return resp
	}

	r, err := h.service.Update(ctx, body)
	if err != nil {
		return errorResponse(err)
	}
	return gateway.JSON(http.StatusOK, map[string]any{"reading": r})
}

func (h *Handler) handleDelete(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if err := h.service.Delete(ctx, gateway.QueryParam(req, "id")); err != nil {
		return errorResponse(err)
	}
	return gateway.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleExport(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	export, err := h.service.Export(ctx, gateway.QueryParam(req, "userId"), strings.ToLower(gateway.QueryParam(req, "format")))
	if err != nil {
		return errorResponse(err)
	}
	return gateway.Binary(http.StatusOK, export.ContentType, export.Filename, export.Data)
}

func (h *Handler) handleStats(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	stats, err := h.service.Stats(ctx, gateway.QueryParam(req, "userId"))
	if err != nil {
		return errorResponse(err)
	}
	return gateway.JSON(http.StatusOK, stats)
}

// decodeBody unmarshals the request body into v. An empty body decodes as {} so
// that missing fields are reported rather than a parse failure.
func decodeBody(req events.APIGatewayProxyRequest, v any) (events.APIGatewayProxyResponse, bool) {
	body, err := gateway.Body(req)
	if err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid JSON"), false
	}
	if strings.TrimSpace(body) == "" {
		body = "{}"
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return gateway.Error(http.StatusBadRequest, "Invalid JSON"), false
	}
	return events.APIGatewayProxyResponse{}, true
}

// errorResponse maps service errors onto status codes. Unexpected errors echo
// the storage error text to the caller, without the operation prefix.
func errorResponse(err error) events.APIGatewayProxyResponse {
	var (
		validationErr *ValidationError
		storeErr      *StoreError
	)
	switch {
	case errors.As(err, &validationErr):
		return gateway.Error(http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, ErrNotFound):
		return gateway.Error(http.StatusNotFound, "Reading not found")
	case errors.Is(err, ErrNotConfigured):
		return gateway.Error(http.StatusInternalServerError, ErrNotConfigured.Error())
	case errors.As(err, &storeErr):
		slog.Error("Storage failure", "error", err)
		return gateway.Error(http.StatusInternalServerError, storeErr.Err.Error())
	default:
		slog.Error("Readings request failed", "error", err)
		return gateway.Error(http.StatusInternalServerError, err.Error())
	}
}
