package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Client is a customer buying eggs by the tray.
type Client struct {
	gorm.Model
	Name        string          `json:"name" gorm:"not null;index"`
	Phone       string          `json:"phone"`
	RatePerTray decimal.Decimal `json:"rate_per_tray" gorm:"type:numeric(12,2)"`
}

// Payment is a confirmed payment received from a client.
type Payment struct {
	gorm.Model
	ClientID     uint            `json:"client_id" gorm:"not null;index"`
	Client       *Client         `json:"client,omitempty"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	UTR          string          `json:"utr,omitempty" gorm:"index:idx_payments_utr,unique,where:utr <> ''"`
	PaymentDate  time.Time       `json:"payment_date"`
	Method       string          `json:"method"`
	Notes        string          `json:"notes,omitempty"`
	ScreenshotID *uint           `json:"screenshot_id,omitempty" gorm:"uniqueIndex"`
}

type ScreenshotStatus string

const (
	StatusUploaded   ScreenshotStatus = "uploaded"
	StatusProcessing ScreenshotStatus = "processing"
	StatusProcessed  ScreenshotStatus = "processed"
	StatusMatched    ScreenshotStatus = "matched"
	StatusConfirmed  ScreenshotStatus = "confirmed"
	StatusError      ScreenshotStatus = "error"
)

var ErrInvalidTransition = errors.New("invalid screenshot status transition")

var transitions = map[ScreenshotStatus][]ScreenshotStatus{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusError},
	StatusProcessed:  {StatusMatched, StatusConfirmed, StatusProcessing},
	StatusMatched:    {StatusConfirmed, StatusProcessing},
	StatusError:      {StatusProcessing},
}

// CanTransition reports whether a screenshot may move from one status to another.
func CanTransition(from, to ScreenshotStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s ScreenshotStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusMatched, StatusConfirmed, StatusError:
		return true
	}
	return false
}

// ScreenshotUpload tracks one uploaded payment screenshot through OCR,
// extraction, client matching and confirmation. Its Status is the source of
// truth for background work.
type ScreenshotUpload struct {
	gorm.Model
	BlobURI      string           `json:"blob_uri" gorm:"not null"`
	OriginalName string           `json:"original_name"`
	ContentType  string           `json:"content_type"`
	UploadedBy   string           `json:"uploaded_by,omitempty"`
	Status       ScreenshotStatus `json:"status" gorm:"type:varchar(20);not null;index"`

	RawText       string  `json:"raw_text,omitempty" gorm:"type:text"`
	OCREngine     string  `json:"ocr_engine,omitempty"`
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`

	ExtractedAmount     decimal.NullDecimal `json:"extracted_amount" gorm:"type:numeric(12,2)"`
	ExtractedAmountTier string              `json:"extracted_amount_tier,omitempty"`
	ExtractedUTR        string              `json:"extracted_utr,omitempty" gorm:"index"`
	ExtractedDate       *time.Time          `json:"extracted_date,omitempty"`
	ExtractedPayerName  string              `json:"extracted_payer_name,omitempty"`
	ExtractedUPIID      string              `json:"extracted_upi_id,omitempty"`

	MatchedClientID *uint   `json:"matched_client_id,omitempty"`
	MatchedClient   *Client `json:"matched_client,omitempty"`
	MatchStrategy   string  `json:"match_strategy,omitempty"`

	PaymentID   *uint      `json:"payment_id,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty" gorm:"type:text"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TransitionTo moves the screenshot to the next status, enforcing the
// uploaded → processing → processed → matched → confirmed lifecycle.
func (s *ScreenshotUpload) TransitionTo(next ScreenshotStatus) error {
	if !CanTransition(s.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	return nil
}
