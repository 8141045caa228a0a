package service

import (
	"errors"
	"fmt"
	"image"

	"github.com/Aashish23092/farm-payment-ocr/utils/upi"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

var ErrNoQRCode = errors.New("no QR code found")

// QRScanner looks for a UPI payment QR code in an image. Some apps print the
// payee's QR on the success screen, and it carries the VPA and amount in a
// form that does not need OCR.
type QRScanner struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func NewQRScanner() *QRScanner {
	return &QRScanner{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Scan decodes a QR code and parses it as a UPI intent. It returns
// ErrNoQRCode when there is no readable code and upi.ErrNotUPIIntent when
// the code is something else.
func (s *QRScanner) Scan(img image.Image) (*upi.Intent, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to create binary bitmap: %w", err)
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, s.hints)
	if err != nil {
		return nil, ErrNoQRCode
	}

	return upi.ParseIntent(result.GetText())
}
