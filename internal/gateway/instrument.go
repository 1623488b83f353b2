package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/zombor/meter-reader/internal/metrics"
)

// Instrument logs and records metrics for every invocation of h under the given function name
func Instrument(function string, h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		start := time.Now()
		resp, err := h.Handle(ctx, req)

		status := resp.StatusCode
		if err != nil {
			status = http.StatusInternalServerError
		}
		dur := time.Since(start)
		metrics.ObserveRequest(function, req.HTTPMethod, status, dur)

		attrs := []any{
			"function", function,
			"method", req.HTTPMethod,
			"path", req.Path,
			"status", status,
			"duration_ms", dur.Milliseconds(),
		}
		switch {
		case err != nil:
			slog.Error("Invocation failed", append(attrs, "error", err)...)
		case status >= http.StatusInternalServerError:
			slog.Error("Invocation completed", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("Invocation completed", attrs...)
		default:
			slog.Info("Invocation completed", attrs...)
		}
		return resp, err
	})
}
