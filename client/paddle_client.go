package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PaddleClient calls a PaddleOCR serving endpoint (PaddleHub ocr_system).
type PaddleClient struct {
	apiURL     string
	httpClient *http.Client
}

// NewPaddleClient creates a client for the given predict URL, e.g.
// http://paddleocr:8866/predict/ocr_system
func NewPaddleClient(apiURL string) *PaddleClient {
	return &PaddleClient{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *PaddleClient) Name() string { return "paddle" }

type paddleResponse struct {
	Msg     string `json:"msg"`
	Status  string `json:"status"`
	Results [][]struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"results"`
}

// ExtractText sends the image base64 encoded and joins the recognised lines.
// The serving model is fixed at deploy time, so lang is ignored.
func (p *PaddleClient) ExtractText(ctx context.Context, image []byte, lang string) (OCRResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"images": []string{base64.StdEncoding.EncodeToString(image)},
	})
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to build PaddleOCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to call PaddleOCR API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return OCRResult{}, fmt.Errorf("PaddleOCR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result paddleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return OCRResult{}, fmt.Errorf("failed to decode PaddleOCR response: %w", err)
	}

	var sb strings.Builder
	var totalConf float64
	var lines int
	if len(result.Results) > 0 {
		for _, line := range result.Results[0] {
			sb.WriteString(line.Text)
			sb.WriteString("\n")
			totalConf += line.Confidence
			lines++
		}
	}

	out := OCRResult{Text: sb.String()}
	if lines > 0 {
		// PaddleOCR reports 0-1
		out.Confidence = totalConf / float64(lines) * 100
	}
	return out, nil
}
