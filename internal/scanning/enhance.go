package scanning

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Grayscale converts img to 8-bit luminance
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// EnhanceContrast scales every pixel's distance from the mean luminance by factor, in place
func EnhanceContrast(gray *image.Gray, factor float64) {
	b := gray.Bounds()
	if b.Empty() {
		return
	}

	var total int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			total += int(gray.GrayAt(x, y).Y)
		}
	}
	mean := math.Floor(float64(total)/float64(b.Dx()*b.Dy()) + 0.5)

	var lut [256]uint8
	for i := range lut {
		v := mean + factor*(float64(i)-mean)
		lut[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, y):gray.PixOffset(b.Min.X, y)+b.Dx()]
		for i, p := range row {
			row[i] = lut[p]
		}
	}
}

// Downscale shrinks img so that neither side exceeds maxSide; smaller images are returned as is
func Downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	scale := float64(maxSide) / float64(max(w, h))
	targetW := max(1, int(math.Round(float64(w)*scale)))
	targetH := max(1, int(math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
