package client

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

type TesseractClient struct {
	dataPath string
}

func NewTesseractClient(dataPath string) *TesseractClient {
	return &TesseractClient{
		dataPath: dataPath,
	}
}

func (tc *TesseractClient) Name() string { return "tesseract" }

// ExtractText enhances the screenshot and runs Tesseract on it. Confidence is
// the mean word confidence.
func (tc *TesseractClient) ExtractText(ctx context.Context, image []byte, lang string) (OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return OCRResult{}, err
	}

	enhanced, err := EnhanceForOCR(image)
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to prepare image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if tc.dataPath != "" {
		if err := client.SetTessdataPrefix(tc.dataPath); err != nil {
			return OCRResult{}, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return OCRResult{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(enhanced); err != nil {
		return OCRResult{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to extract text: %w", err)
	}

	// Get bounding boxes to calculate confidence
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return OCRResult{Text: text}, nil
	}

	var total float64
	for _, box := range boxes {
		total += box.Confidence
	}

	return OCRResult{Text: text, Confidence: total / float64(len(boxes))}, nil
}
