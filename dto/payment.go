package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type AmountTier string

const (
	AmountTierContextual AmountTier = "contextual"
	AmountTierLoose      AmountTier = "loose"
	AmountTierPlausible  AmountTier = "plausible"
	AmountTierQR         AmountTier = "qr"
)

// ExtractedPaymentInfo is the best-effort reading of a payment screenshot.
// Every field is optional; a zero value means "not found".
type ExtractedPaymentInfo struct {
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	AmountTier AmountTier       `json:"amount_tier,omitempty"`
	UTR        string           `json:"utr,omitempty"`
	Date       *time.Time       `json:"date,omitempty"`
	PayerName  string           `json:"payer_name,omitempty"`
	UPIID      string           `json:"upi_id,omitempty"`
}

// IsEmpty reports whether nothing at all was extracted.
func (e ExtractedPaymentInfo) IsEmpty() bool {
	return e.Amount == nil && e.UTR == "" && e.Date == nil && e.PayerName == "" && e.UPIID == ""
}

type ClientSummary struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	RatePerTray decimal.Decimal `json:"rate_per_tray"`
}

type MatchSummary struct {
	Client   ClientSummary `json:"client"`
	Strategy string        `json:"strategy"`
}

// ExtractionResponse is returned by the synchronous extract endpoints.
type ExtractionResponse struct {
	Extracted     ExtractedPaymentInfo `json:"extracted"`
	Match         *MatchSummary        `json:"match,omitempty"`
	RawText       string               `json:"raw_text"`
	OCREngine     string               `json:"ocr_engine,omitempty"`
	OCRConfidence float64              `json:"ocr_confidence,omitempty"`
	Source        string               `json:"source"`
	ProcessedAt   string               `json:"processed_at"`
}
