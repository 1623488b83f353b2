package scanning

import (
	"context"
	"log/slog"
)

// Fallback answers with an annotated demo result when the primary scanner fails
type Fallback struct {
	primary  Scanner
	fallback Scanner
}

// WithFallback wraps primary with the demo scanner
func WithFallback(primary Scanner) *Fallback {
	return &Fallback{primary: primary, fallback: NewDemo()}
}

// Name returns the primary scanner's name
func (f *Fallback) Name() string {
	return f.primary.Name()
}

// ScanMeter tries the primary scanner first. On failure the demo result is returned
// with demo=true and the primary's error message; if the photo cannot be decoded at
// all the primary's error is returned.
func (f *Fallback) ScanMeter(ctx context.Context, imageData []byte, contentType string) (*MeterData, error) {
	data, err := f.primary.ScanMeter(ctx, imageData, contentType)
	if err == nil {
		return data, nil
	}

	slog.Warn("Scanner failed, falling back to demo", "scanner", f.primary.Name(), "error", err)

	demo, demoErr := f.fallback.ScanMeter(ctx, imageData, contentType)
	if demoErr != nil {
		slog.Error("Demo fallback failed", "error", demoErr)
		return nil, err
	}
	demo.Demo = true
	demo.Error = err.Error()
	return demo, nil
}

// Close closes both scanners
func (f *Fallback) Close() error {
	if err := f.primary.Close(); err != nil {
		return err
	}
	return f.fallback.Close()
}
