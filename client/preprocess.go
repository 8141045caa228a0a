package client

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// maxOCRWidth keeps very large phone screenshots from slowing Tesseract down.
const maxOCRWidth = 2000

// DecodeImage decodes PNG, JPEG, GIF, BMP or TIFF bytes, honouring EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EnhanceForOCR converts a screenshot to a high contrast grayscale PNG.
// Dark-mode payment apps render light text on dark backgrounds, so those
// are inverted first.
func EnhanceForOCR(data []byte) ([]byte, error) {
	src, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	img := imaging.Grayscale(src)
	if isDark(img) {
		img = imaging.Invert(img)
	}
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.0)

	if img.Bounds().Dx() > maxOCRWidth {
		img = imaging.Resize(img, maxOCRWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// isDark samples the image and reports whether the mean luminance is below half.
func isDark(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return false
	}

	stepX := max(1, b.Dx()/64)
	stepY := max(1, b.Dy()/64)

	var sum, n uint64
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, _, _, _ := img.At(x, y).RGBA()
			sum += uint64(r >> 8)
			n++
		}
	}
	return n > 0 && sum/n < 128
}
