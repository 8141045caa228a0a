package service

import (
	"context"
	"time"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/models"
	"github.com/Aashish23092/farm-payment-ocr/utils/upi"
)

// ExtractionService reads and matches a payment synchronously without
// storing anything.
type ExtractionService struct {
	reader  Reader
	matcher *ClientMatcher
	now     func() time.Time
}

func NewExtractionService(reader Reader, matcher *ClientMatcher) *ExtractionService {
	return &ExtractionService{reader: reader, matcher: matcher, now: time.Now}
}

// ExtractFromFile OCRs an image or PDF and extracts the payment from it.
func (s *ExtractionService) ExtractFromFile(ctx context.Context, data []byte) (*dto.ExtractionResponse, error) {
	doc, err := s.reader.Read(ctx, data)
	if err != nil {
		return nil, err
	}

	info := upi.MergeIntent(upi.Extract(doc.Text), doc.Intent)
	resp, err := s.respond(ctx, info, doc.Text, doc.Source)
	if err != nil {
		return nil, err
	}
	resp.OCREngine = doc.Engine
	resp.OCRConfidence = doc.Confidence
	return resp, nil
}

// ExtractFromText extracts a payment from text OCRed elsewhere.
func (s *ExtractionService) ExtractFromText(ctx context.Context, text string) (*dto.ExtractionResponse, error) {
	return s.respond(ctx, upi.Extract(text), text, SourceText)
}

func (s *ExtractionService) respond(ctx context.Context, info dto.ExtractedPaymentInfo, text, source string) (*dto.ExtractionResponse, error) {
	match, err := s.matcher.Match(ctx, info)
	if err != nil {
		return nil, err
	}

	resp := &dto.ExtractionResponse{
		Extracted:   info,
		RawText:     text,
		Source:      source,
		ProcessedAt: s.now().UTC().Format(time.RFC3339),
	}
	if match != nil {
		resp.Match = &dto.MatchSummary{
			Client:   ClientSummary(match.Client),
			Strategy: match.Strategy,
		}
	}
	return resp, nil
}

// ClientSummary is the public view of a client.
func ClientSummary(c models.Client) dto.ClientSummary {
	return dto.ClientSummary{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       c.Phone,
		RatePerTray: c.RatePerTray,
	}
}
