// Package tesseract recognises meter photos with a local Tesseract engine.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/meter-reader/internal/scanning"
)

const (
	maxSide   = 2000
	whitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-№ "
)

// Scanner implements scanning.Scanner using the gosseract client
type Scanner struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// New constructs a Tesseract-backed scanner. languages defaults to English.
func New(languages ...string) *Scanner {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Scanner{clientFactory: gosseract.NewClient, languages: languages}
}

// Name returns "tesseract"
func (s *Scanner) Name() string { return "tesseract" }

// ScanMeter cleans the photo up for OCR, recognises its text and extracts the meter values
func (s *Scanner) ScanMeter(ctx context.Context, imageData []byte, contentType string) (*scanning.MeterData, error) {
	pngData, err := preprocess(imageData, contentType)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(s.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetWhitelist(whitelist); err != nil {
		return nil, fmt.Errorf("set whitelist: %w", err)
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	return scanning.ExtractMeterData(text)
}

// Close is a no-op; clients are created per scan
func (s *Scanner) Close() error { return nil }

func preprocess(imageData []byte, contentType string) ([]byte, error) {
	img, err := scanning.DecodeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}
	gray := scanning.Grayscale(scanning.Downscale(img, maxSide))
	scanning.EnhanceContrast(gray, 2.0)
	return scanning.EncodePNG(gray)
}
