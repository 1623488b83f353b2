package gateway

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// maxBodySize bounds request bodies read by the HTTP adapter (base64 photos from phones are large)
const maxBodySize = int64(50 << 20)

// NewRequest converts an incoming HTTP request into an API-Gateway proxy request
func NewRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(body)) > maxBodySize {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("request body exceeds %d bytes", maxBodySize)
	}

	headers := make(map[string]string, len(r.Header))
	multiHeaders := make(map[string][]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ",")
		multiHeaders[name] = values
	}

	query := make(map[string]string)
	multiQuery := make(map[string][]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
		multiQuery[name] = values
	}

	return events.APIGatewayProxyRequest{
		Resource:                        r.URL.Path,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               multiHeaders,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: multiQuery,
		PathParameters:                  map[string]string{},
		Body:                            string(body),
	}, nil
}

// Write copies an API-Gateway proxy response onto w
func Write(w http.ResponseWriter, resp events.APIGatewayProxyResponse) error {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	for name, values := range resp.MultiValueHeaders {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
		body = decoded
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// HTTPHandler serves h over net/http
func HTTPHandler(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := NewRequest(r)
		if err != nil {
			slog.Error("Error reading request", "path", r.URL.Path, "error", err)
			Write(w, Error(http.StatusBadRequest, "Request body too large or unreadable"))
			return
		}

		resp, err := h.Handle(r.Context(), req)
		if err != nil {
			slog.Error("Unhandled error", "path", r.URL.Path, "error", err)
			resp = Error(http.StatusInternalServerError, err.Error())
		}

		if err := Write(w, resp); err != nil {
			slog.Error("Error writing response", "path", r.URL.Path, "error", err)
		}
	})
}
