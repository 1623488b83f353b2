// Package app builds the function handlers from a parsed configuration. Both the
// HTTP server and the Lambda entrypoint are assembled here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/meter-reader/internal/config"
	"github.com/zombor/meter-reader/internal/gateway"
	"github.com/zombor/meter-reader/internal/notify"
	"github.com/zombor/meter-reader/internal/photo"
	"github.com/zombor/meter-reader/internal/reading"
	"github.com/zombor/meter-reader/internal/scanning"
	"github.com/zombor/meter-reader/internal/scanning/tesseract"
)

// App holds the wired handlers and the resources they own. A Lambda deployment
// serves one function, so only that function's handler is built; the others stay nil.
type App struct {
	Readings *reading.Handler
	OCR      *scanning.Handler
	Notify   *notify.Handler
	Photos   *photo.Library

	store   reading.Store
	scanner scanning.Scanner
}

// serves reports whether cfg selects function; an empty selection means all of them
func serves(cfg *config.Config, function string) bool {
	return cfg.Function == "" || cfg.Function == function
}

// New builds the handlers of the configured function, or of every function when
// none is selected. Storage is only opened for the readings function.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	a = &App{}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if serves(cfg, config.FunctionReadings) {
		if a.store, err = OpenStore(ctx, cfg); err != nil {
			return a, err
		}
		a.Readings = reading.NewHandler(reading.NewService(a.store))
	}

	if serves(cfg, config.FunctionOCR) {
		if a.scanner, err = NewScanner(cfg); err != nil {
			return a, err
		}
		if a.Photos, err = NewPhotoLibrary(cfg); err != nil {
			return a, err
		}
		var photoStore scanning.PhotoStore
		if a.Photos != nil {
			photoStore = a.Photos
		}
		a.OCR = scanning.NewHandler(a.scanner, photoStore)
	}

	if serves(cfg, config.FunctionNotify) {
		if a.Notify, err = NewNotifyHandler(cfg); err != nil {
			return a, err
		}
	}

	return a, nil
}

// Handler returns the handler for a Lambda function name, instrumented
func (a *App) Handler(function string) (gateway.Handler, error) {
	var h gateway.Handler
	switch function {
	case config.FunctionReadings:
		if a.Readings != nil {
			h = a.Readings
		}
	case config.FunctionOCR:
		if a.OCR != nil {
			h = a.OCR
		}
	case config.FunctionNotify:
		if a.Notify != nil {
			h = a.Notify
		}
	default:
		return nil, fmt.Errorf("unknown function %q", function)
	}
	if h == nil {
		return nil, fmt.Errorf("function %q was not built", function)
	}
	return gateway.Instrument(function, h), nil
}

// Close releases the store and the scanner
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.scanner != nil {
		errs = append(errs, a.scanner.Close())
	}
	return errors.Join(errs...)
}

// OpenStore opens the configured readings store. Neither a missing connection
// string nor an unreachable server is fatal: requests then fail with a 500.
func OpenStore(ctx context.Context, cfg *config.Config) (reading.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := reading.OpenPostgres(ctx, cfg.DatabaseURL, reading.WithTable(cfg.Table))
		if errors.Is(err, reading.ErrNotConfigured) {
			slog.Warn("No database configured; readings requests will fail", "store", cfg.Store)
			return reading.UnconfiguredStore{}, nil
		}
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			slog.Warn("Failed to migrate readings table", "table", cfg.Table, "error", err)
		}
		slog.Info("Opened postgres readings store", "table", cfg.Table)
		return store, nil
	case config.StoreSQLite:
		slog.Info("Opening sqlite readings store", "path", cfg.SQLitePath)
		store, err := reading.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreBolt:
		slog.Info("Opening bolt readings store", "path", cfg.BoltPath)
		store, err := reading.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// NewScanner builds the configured scanner. Recognition backends fall back to the
// demo result on failure; Gemini without an API key runs the annotated demo.
func NewScanner(cfg *config.Config) (scanning.Scanner, error) {
	switch cfg.Scanner {
	case config.ScannerDemo:
		return scanning.NewDemo(), nil
	case config.ScannerGemini:
		if cfg.GeminiKey == "" {
			slog.Warn("No Gemini API key configured; using demo recognition")
			return scanning.NewAnnotatedDemo(), nil
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel)
		gemini, err := scanning.NewGemini(cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return scanning.WithFallback(gemini), nil
	case config.ScannerOllama:
		slog.Info("Initializing Ollama scanner...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		ollama, err := scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return scanning.WithFallback(ollama), nil
	case config.ScannerTesseract:
		slog.Info("Initializing Tesseract scanner...", "languages", cfg.Languages())
		return scanning.WithFallback(tesseract.New(cfg.Languages()...)), nil
	default:
		return nil, fmt.Errorf("unknown scanner %q", cfg.Scanner)
	}
}

// NewPhotoLibrary returns nil when photo storage is disabled
func NewPhotoLibrary(cfg *config.Config) (*photo.Library, error) {
	if cfg.PhotoDir == "" {
		return nil, nil
	}
	storage, err := photo.NewLocalStorage(cfg.PhotoDir)
	if err != nil {
		return nil, err
	}
	return photo.NewLibrary(storage, "/photos"), nil
}

// NewNotifyHandler builds the notification handler. Without a bot token the
// handler answers every request with a configuration error.
func NewNotifyHandler(cfg *config.Config) (*notify.Handler, error) {
	tpl, err := notify.NewTemplate(cfg.MessageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing message template: %w", err)
	}

	if cfg.TelegramToken == "" {
		slog.Warn("No Telegram bot token configured; notifications are disabled")
		return notify.NewHandler(nil, tpl), nil
	}

	telegram, err := notify.NewTelegram(cfg.TelegramToken, notify.WithBaseURL(cfg.TelegramAPIURL))
	if err != nil {
		return nil, err
	}
	return notify.NewHandler(telegram, tpl), nil
}
