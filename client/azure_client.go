package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// AzureClient reads printed text with Azure Computer Vision.
type AzureClient struct {
	client *computervision.BaseClient
}

// NewAzureClient creates a Computer Vision client for endpoint using a
// Cognitive Services subscription key.
func NewAzureClient(endpoint, apiKey string) *AzureClient {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureClient{client: &client}
}

func (a *AzureClient) Name() string { return "azure" }

func (a *AzureClient) ExtractText(ctx context.Context, image []byte, lang string) (OCRResult, error) {
	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(image)),
		azureLanguage(lang),
	)
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to extract text: %w", err)
	}

	return OCRResult{Text: azureText(result)}, nil
}

// azureText joins words into lines and lines into text, region by region.
func azureText(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}

	var sb strings.Builder
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			sb.WriteString(strings.Join(words, " "))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// azureLanguage maps Tesseract language codes to Computer Vision ones.
// Anything else, Hindi included, is left to auto-detection.
func azureLanguage(lang string) computervision.OcrLanguages {
	switch lang {
	case "", "eng":
		return computervision.OcrLanguagesEn
	default:
		return computervision.OcrLanguagesUnk
	}
}
