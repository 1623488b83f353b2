// Package gateway builds API-Gateway proxy envelopes shared by every function and
// adapts them to net/http for the standalone server.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// Handler handles one API-Gateway proxy request
type Handler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Handle calls f(ctx, req)
func (f HandlerFunc) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return f(ctx, req)
}

func baseHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": "*",
	}
}

// JSON encodes v as the response body
func JSON(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return Error(http.StatusInternalServerError, fmt.Sprintf("encoding response: %v", err))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    baseHeaders(),
		Body:       string(body),
	}
}

// Error returns {"error": message}
func Error(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    baseHeaders(),
		Body:       string(body),
	}
}

// MethodNotAllowed is the 405 envelope shared by all functions
func MethodNotAllowed() events.APIGatewayProxyResponse {
	return Error(http.StatusMethodNotAllowed, "Method not allowed")
}

// Preflight answers a CORS OPTIONS request with an empty body
func Preflight(methods string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": methods,
			"Access-Control-Allow-Headers": "Content-Type, X-User-Id",
			"Access-Control-Max-Age":       "86400",
		},
	}
}

// Binary returns data as a base64-encoded download
func Binary(status int, contentType, filename string, data []byte) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                contentType,
			"Content-Disposition":         fmt.Sprintf("attachment; filename=%q", filename),
			"Access-Control-Allow-Origin": "*",
		},
		Body:            base64.StdEncoding.EncodeToString(data),
		IsBase64Encoded: true,
	}
}

// QueryParam returns a query string parameter, or "" when absent
func QueryParam(req events.APIGatewayProxyRequest, name string) string {
	if v, ok := req.QueryStringParameters[name]; ok {
		return v
	}
	if vs := req.MultiValueQueryStringParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Body returns the request body, decoding it when the gateway marked it base64
func Body(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", fmt.Errorf("decoding request body: %w", err)
	}
	return string(decoded), nil
}
