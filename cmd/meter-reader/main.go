package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/meter-reader/internal/app"
	"github.com/zombor/meter-reader/internal/config"
	"github.com/zombor/meter-reader/internal/logging"
	"github.com/zombor/meter-reader/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	cfg, err := config.Parse("meter-reader", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(config.FlagSet("meter-reader")))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	// The server hosts every function
	cfg.Function = ""

	if err := logging.Setup(cfg.LogFormat, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing...", "version", version, "store", cfg.Store, "scanner", cfg.Scanner)
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handlers := server.Handlers{
		Readings: a.Readings,
		OCR:      a.OCR,
		Notify:   a.Notify,
	}
	if a.Photos != nil {
		handlers.Photos = a.Photos
	}
	srv := server.New(handlers, server.BasicAuth{
		Username: cfg.AuthUser,
		Password: cfg.AuthPass,
	})

	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.AuthUser)
	}

	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}
