package scanning

import "context"

// MeterData contains the values recognised on a meter photo
type MeterData struct {
	MeterNumber string `json:"meterNumber"`
	Reading     int64  `json:"reading"`
	Demo        bool   `json:"demo,omitempty"`
	Error       string `json:"error,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// Scanner defines the interface for meter recognition
type Scanner interface {
	// Name identifies the scanner in logs and metrics
	Name() string
	// ScanMeter analyzes a meter photo and extracts its number and reading
	ScanMeter(ctx context.Context, imageData []byte, contentType string) (*MeterData, error)
	// Close closes the scanner and releases resources
	Close() error
}
