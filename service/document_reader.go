package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/Aashish23092/farm-payment-ocr/client"
	"github.com/Aashish23092/farm-payment-ocr/utils/upi"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

const (
	SourceImageOCR = "image_ocr"
	SourcePDFText  = "pdf_text"
	SourcePDFOCR   = "pdf_ocr"
	SourceText     = "text"

	// minPDFTextChars is how much embedded text a PDF needs before its
	// images are not worth OCRing.
	minPDFTextChars = 20
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("document has no readable content")
)

var supportedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/bmp":       true,
	"application/pdf": true,
}

// DetectContentType sniffs the file content and rejects anything that is
// not an image or a PDF. The client-supplied header is not trusted.
func DetectContentType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i != -1 {
		ct = ct[:i]
	}
	if !supportedTypes[ct] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return ct, nil
}

// Recognizer is the OCR step. *client.EngineChain satisfies it.
type Recognizer interface {
	ExtractText(ctx context.Context, image []byte, lang string) (client.OCRResult, error)
}

// Document is the text read from an uploaded screenshot or receipt.
type Document struct {
	Text       string
	Engine     string
	Confidence float64
	Source     string
	Intent     *upi.Intent
}

// DocumentReader turns an uploaded file into text.
type DocumentReader struct {
	ocr  Recognizer
	pdf  PDFProcessor
	qr   *QRScanner
	lang string
	log  zerolog.Logger
}

func NewDocumentReader(ocr Recognizer, pdf PDFProcessor, qr *QRScanner, lang string, log zerolog.Logger) *DocumentReader {
	return &DocumentReader{ocr: ocr, pdf: pdf, qr: qr, lang: lang, log: log}
}

// Read dispatches on the sniffed content type.
func (r *DocumentReader) Read(ctx context.Context, data []byte) (*Document, error) {
	ct, err := DetectContentType(data)
	if err != nil {
		return nil, err
	}
	if ct == "application/pdf" {
		return r.readPDF(ctx, data)
	}
	return r.readImage(ctx, data)
}

func (r *DocumentReader) readImage(ctx context.Context, data []byte) (*Document, error) {
	img, err := client.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	res, err := r.ocr.ExtractText(ctx, data, r.lang)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	return &Document{
		Text:       res.Text,
		Engine:     res.Engine,
		Confidence: res.Confidence,
		Source:     SourceImageOCR,
		Intent:     r.scanQR(img),
	}, nil
}

func (r *DocumentReader) readPDF(ctx context.Context, data []byte) (*Document, error) {
	text, err := r.pdf.ExtractText(data)
	if err != nil {
		r.log.Warn().Err(err).Msg("PDF text extraction failed, trying embedded images")
	}
	if countChars(text) >= minPDFTextChars {
		return &Document{Text: text, Engine: "pdf", Confidence: 100, Source: SourcePDFText}, nil
	}

	images, imgErr := r.pdf.ExtractImages(data)
	if imgErr != nil {
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf: %w", errors.Join(err, imgErr))
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", imgErr)
	}
	if len(images) == 0 {
		// Only the little embedded text there is.
		return &Document{Text: text, Engine: "pdf", Source: SourcePDFText}, nil
	}

	doc := &Document{Source: SourcePDFOCR}
	var pages []string
	var totalConf float64
	var lastErr error

	for idx, img := range images {
		if doc.Intent == nil {
			doc.Intent = r.scanQR(img)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			r.log.Warn().Err(err).Int("page", idx+1).Msg("Failed to encode PDF image")
			continue
		}

		res, err := r.ocr.ExtractText(ctx, buf.Bytes(), r.lang)
		if err != nil {
			r.log.Warn().Err(err).Int("page", idx+1).Msg("OCR failed on PDF image")
			lastErr = err
			continue
		}
		pages = append(pages, res.Text)
		totalConf += res.Confidence
		doc.Engine = res.Engine
	}

	if len(pages) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("OCR failed: %w", lastErr)
		}
		return nil, ErrEmptyDocument
	}

	doc.Text = strings.Join(append([]string{text}, pages...), "\n")
	doc.Confidence = totalConf / float64(len(pages))
	return doc, nil
}

// scanQR returns the UPI intent in img, or nil.
func (r *DocumentReader) scanQR(img image.Image) *upi.Intent {
	if r.qr == nil {
		return nil
	}
	intent, err := r.qr.Scan(img)
	if err != nil {
		if !errors.Is(err, ErrNoQRCode) {
			r.log.Debug().Err(err).Msg("QR code is not a UPI intent")
		}
		return nil
	}
	return intent
}

func countChars(s string) int {
	return len(strings.Join(strings.Fields(s), ""))
}
