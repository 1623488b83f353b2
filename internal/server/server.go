// Package server exposes the reading, recognition and notification functions
// over plain HTTP, for running outside Lambda.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/meter-reader/internal/gateway"
	"github.com/zombor/meter-reader/internal/photo"
)

// PhotoSource serves stored photos by name
type PhotoSource interface {
	Open(name string) ([]byte, error)
}

// Handlers are the functions mounted by the server. Photos may be nil.
type Handlers struct {
	Readings gateway.Handler
	OCR      gateway.Handler
	Notify   gateway.Handler
	Photos   PhotoSource
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Server handles HTTP requests for all functions
type Server struct {
	handlers  Handlers
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// New creates a new Server with default mux
func New(handlers Handlers, basicAuth BasicAuth) *Server {
	return NewWithMux(handlers, basicAuth, http.NewServeMux())
}

// NewWithMux creates a new Server with a custom mux for testing
func NewWithMux(handlers Handlers, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		handlers:  handlers,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware. Preflight requests carry no credentials and pass through.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Meter Reader"`)
			gateway.Write(w, gateway.Error(http.StatusUnauthorized, "Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// function mounts a gateway handler with auth and instrumentation
func (s *Server) function(name string, h gateway.Handler) http.Handler {
	return s.requireAuth(gateway.HTTPHandler(gateway.Instrument(name, h)))
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	readings := s.function("readings", s.handlers.Readings)
	s.mux.Handle("/api/readings/export", readings)
	s.mux.Handle("/api/readings/stats", readings)
	s.mux.Handle("/api/readings", readings)
	s.mux.Handle("/api/ocr", s.function("ocr", s.handlers.OCR))
	s.mux.Handle("/api/notify", s.function("notify", s.handlers.Notify))

	if s.handlers.Photos != nil {
		s.mux.Handle("GET /photos/{name}", s.requireAuth(http.HandlerFunc(s.handleGetPhoto)))
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.handlers.Photos.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, photo.ErrInvalidName):
			gateway.Write(w, gateway.Error(http.StatusBadRequest, "Invalid photo name"))
		case errors.Is(err, fs.ErrNotExist):
			gateway.Write(w, gateway.Error(http.StatusNotFound, "Photo not found"))
		default:
			slog.Error("Error reading photo", "name", name, "error", err)
			gateway.Write(w, gateway.Error(http.StatusInternalServerError, "Failed to read photo"))
		}
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, err := w.Write(data); err != nil {
		slog.Error("Error writing photo", "name", name, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	gateway.Write(w, gateway.JSON(http.StatusOK, map[string]string{"status": "ok"}))
}

// statusWriter remembers the status code written through it
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// logRequests logs every request at debug level
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logRequests(s.mux).ServeHTTP(w, r)
}
