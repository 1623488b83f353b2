package scanning

import (
	"context"
	"image"
	"math/rand/v2"
	"strconv"
	"strings"
)

var meterPrefixes = []string{"AM", "BK", "CM", "DL", "EM", "FK"}

// Demo derives a plausible meter number and reading from the photo's pixels.
// The same photo always yields the same result; nothing is actually read.
type Demo struct {
	annotate bool
}

// NewDemo creates the demo scanner
func NewDemo() *Demo {
	return &Demo{}
}

// NewAnnotatedDemo creates a demo scanner whose results carry demo=true, used
// when a recognition backend was requested but has no credentials
func NewAnnotatedDemo() *Demo {
	return &Demo{annotate: true}
}

// Name returns "demo"
func (d *Demo) Name() string {
	return "demo"
}

// ScanMeter decodes the photo and derives the result from its seed
func (d *Demo) ScanMeter(_ context.Context, imageData []byte, contentType string) (*MeterData, error) {
	img, err := DecodeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	data := demoReading(imageSeed(img))
	data.Demo = d.annotate
	return data, nil
}

// Close is a no-op
func (d *Demo) Close() error {
	return nil
}

// imageSeed sums a sparse grid of contrast-enhanced luminance samples, modulo 10000.
// The grid step is a tenth of the width on both axes.
func imageSeed(img image.Image) int {
	gray := Grayscale(img)
	EnhanceContrast(gray, 2.0)

	b := gray.Bounds()
	step := max(1, b.Dx()/10)

	var sum int
	for x := b.Min.X; x < b.Max.X; x += step {
		for y := b.Min.Y; y < b.Max.Y; y += step {
			sum += int(gray.GrayAt(x, y).Y)
		}
	}
	return sum % 10000
}

func demoReading(seed int) *MeterData {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	reading := 1000 + rng.IntN(9000)
	prefix := meterPrefixes[rng.IntN(len(meterPrefixes))]

	suffix := strconv.Itoa(seed)
	if len(suffix) > 3 {
		suffix = suffix[:3]
	}
	suffix = strings.Repeat("0", 3-len(suffix)) + suffix

	return &MeterData{
		MeterNumber: prefix + suffix + "V",
		Reading:     int64(reading),
	}
}
