package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Aashish23092/farm-payment-ocr/client"
	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) ExtractText(ctx context.Context, image []byte, lang string) (client.OCRResult, error) {
	f.calls++
	if f.err != nil {
		return client.OCRResult{}, f.err
	}
	return client.OCRResult{Text: f.text, Confidence: 91.5, Engine: "fake"}, nil
}

type fakePDF struct {
	text    string
	images  []image.Image
	textErr error
}

func (f *fakePDF) ExtractText(pdfData []byte) (string, error) { return f.text, f.textErr }

func (f *fakePDF) ExtractImages(pdfData []byte) ([]image.Image, error) { return f.images, nil }

var fakePDFBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func blankPNG(t *testing.T) []byte {
	return encodePNG(t, imaging.New(60, 40, color.White))
}

func qrImage(t *testing.T, content string) image.Image {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, 300, 300, nil)
	require.NoError(t, err)
	return matrix
}

func TestDetectContentType(t *testing.T) {
	ct, err := DetectContentType(blankPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	ct, err = DetectContentType(fakePDFBytes)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)

	_, err = DetectContentType([]byte("hello, plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = DetectContentType(nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestReadImage(t *testing.T) {
	ocr := &fakeRecognizer{text: "Paid ₹1,500.00"}
	reader := NewDocumentReader(ocr, &fakePDF{}, NewQRScanner(), "eng", zerolog.Nop())

	doc, err := reader.Read(context.Background(), blankPNG(t))

	require.NoError(t, err)
	assert.Equal(t, "Paid ₹1,500.00", doc.Text)
	assert.Equal(t, "fake", doc.Engine)
	assert.Equal(t, SourceImageOCR, doc.Source)
	assert.Nil(t, doc.Intent)
}

func TestReadImageWithUPIQRCode(t *testing.T) {
	data := encodePNG(t, qrImage(t, "upi://pay?pa=SaiPoultry@okaxis&pn=Sai%20Poultry&am=750.00&cu=INR"))
	reader := NewDocumentReader(&fakeRecognizer{text: "Scan to pay"}, &fakePDF{}, NewQRScanner(), "eng", zerolog.Nop())

	doc, err := reader.Read(context.Background(), data)

	require.NoError(t, err)
	require.NotNil(t, doc.Intent)
	assert.Equal(t, "saipoultry@okaxis", doc.Intent.PayeeVPA)
	assert.Equal(t, "750", doc.Intent.Amount.String())
}

func TestReadImageOCRFailure(t *testing.T) {
	boom := errors.New("all engines down")
	reader := NewDocumentReader(&fakeRecognizer{err: boom}, &fakePDF{}, nil, "eng", zerolog.Nop())

	_, err := reader.Read(context.Background(), blankPNG(t))

	assert.ErrorIs(t, err, boom)
}

func TestReadPDFUsesEmbeddedText(t *testing.T) {
	ocr := &fakeRecognizer{text: "unused"}
	pdf := &fakePDF{text: "Transaction Successful\nAmount Rs 2,000.00\nUTR 512345678901"}
	reader := NewDocumentReader(ocr, pdf, nil, "eng", zerolog.Nop())

	doc, err := reader.Read(context.Background(), fakePDFBytes)

	require.NoError(t, err)
	assert.Equal(t, SourcePDFText, doc.Source)
	assert.Contains(t, doc.Text, "512345678901")
	assert.Equal(t, 0, ocr.calls)
}

func TestReadPDFFallsBackToOCR(t *testing.T) {
	ocr := &fakeRecognizer{text: "Paid ₹900.00 to Egg Corner"}
	pdf := &fakePDF{
		text:   "Page 1",
		images: []image.Image{imaging.New(30, 30, color.White), imaging.New(30, 30, color.White)},
	}
	reader := NewDocumentReader(ocr, pdf, nil, "eng", zerolog.Nop())

	doc, err := reader.Read(context.Background(), fakePDFBytes)

	require.NoError(t, err)
	assert.Equal(t, SourcePDFOCR, doc.Source)
	assert.Equal(t, 2, ocr.calls)
	assert.Contains(t, doc.Text, "Page 1")
	assert.Contains(t, doc.Text, "Paid ₹900.00")
	assert.InDelta(t, 91.5, doc.Confidence, 0.001)
}

func TestReadPDFWithoutTextOrImages(t *testing.T) {
	reader := NewDocumentReader(&fakeRecognizer{}, &fakePDF{text: "x"}, nil, "eng", zerolog.Nop())

	doc, err := reader.Read(context.Background(), fakePDFBytes)

	require.NoError(t, err)
	assert.Equal(t, SourcePDFText, doc.Source)
	assert.Equal(t, "x", doc.Text)
}

func TestQRScannerNoCode(t *testing.T) {
	_, err := NewQRScanner().Scan(imaging.New(100, 100, color.White))
	assert.ErrorIs(t, err, ErrNoQRCode)
}
