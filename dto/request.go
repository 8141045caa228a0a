package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExtractTextRequest carries OCR text that was produced elsewhere.
type ExtractTextRequest struct {
	Text string `json:"text"`
}

// ConfirmPaymentRequest turns a processed screenshot into a payment.
// Zero-valued fields fall back to what was extracted or matched.
type ConfirmPaymentRequest struct {
	ClientID uint             `json:"client_id"`
	Amount   *decimal.Decimal `json:"amount"`
	UTR      string           `json:"utr"`
	Date     string           `json:"date"` // "YYYY-MM-DD"
	Notes    string           `json:"notes"`
}

// Validate performs basic validation on the request
func (r *ConfirmPaymentRequest) Validate() error {
	if r.Amount != nil && !r.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if r.Date != "" {
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return errors.New("date must be formatted as YYYY-MM-DD")
		}
	}
	r.UTR = strings.ToUpper(strings.TrimSpace(r.UTR))
	if r.UTR != "" && (len(r.UTR) < 10 || len(r.UTR) > 20) {
		return errors.New("utr must be 10 to 20 characters")
	}
	return nil
}

// ParsedDate returns the override date, if any.
func (r *ConfirmPaymentRequest) ParsedDate() *time.Time {
	if r.Date == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil
	}
	return &t
}
