package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const transcribePrompt = "Transcribe every piece of visible text in this payment screenshot exactly as shown, " +
	"one line per line on screen. Keep currency symbols, digits, punctuation and reference numbers verbatim. " +
	"Do not summarise, translate, explain or add anything. Output plain text only."

// GeminiClient uses a Gemini vision model as an OCR engine. Models are tried
// in order; the next one is used when a model errors or returns nothing.
type GeminiClient struct {
	client *genai.Client
	models []string
	log    zerolog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey string, models []string, log zerolog.Logger) (*GeminiClient, error) {
	if len(models) == 0 {
		return nil, errors.New("at least one Gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: client, models: models, log: log}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) ExtractText(ctx context.Context, image []byte, lang string) (OCRResult, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: http.DetectContentType(image),
						Data:     image,
					},
				},
			},
		},
	}

	var errs []error
	for _, model := range g.models {
		resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			g.log.Warn().Err(err).Str("model", model).Msg("Gemini model failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			errs = append(errs, fmt.Errorf("%s: empty response", model))
			continue
		}
		return OCRResult{Text: stripFences(text)}, nil
	}

	return OCRResult{}, fmt.Errorf("all Gemini models failed: %w", errors.Join(errs...))
}

// stripFences removes a ``` wrapper if the model ignored the instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
