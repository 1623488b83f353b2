package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/zombor/meter-reader/internal/app"
	"github.com/zombor/meter-reader/internal/config"
	"github.com/zombor/meter-reader/internal/logging"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// One binary serves every function; METER_READER_FUNCTION (or --function)
// selects readings, ocr or notify per deployment.
func main() {
	cfg, err := config.Parse("meter-reader-lambda", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	if cfg.Function == "" {
		fmt.Fprintln(os.Stderr, "error: function is required (set METER_READER_FUNCTION)")
		os.Exit(1)
	}

	if err := logging.Setup(logging.FormatJSON, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to initialize", "function", cfg.Function, "error", err)
		os.Exit(1)
	}
	defer a.Close()

	h, err := a.Handler(cfg.Function)
	if err != nil {
		slog.Error("Failed to select function", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting function", "function", cfg.Function, "version", version)
	lambda.Start(h.Handle)
}
