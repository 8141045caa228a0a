package upi

import (
	"errors"
	"net/url"
	"strings"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/shopspring/decimal"
)

var ErrNotUPIIntent = errors.New("not a upi://pay intent")

// Intent is the payload of a UPI payment QR code:
// upi://pay?pa=farm@okaxis&pn=Sai%20Poultry&am=1500.00&cu=INR&tr=ORD123&tn=Eggs
type Intent struct {
	PayeeVPA       string           `json:"payee_vpa"`
	PayeeName      string           `json:"payee_name,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	TransactionRef string           `json:"transaction_ref,omitempty"`
	Note           string           `json:"note,omitempty"`
}

// ParseIntent parses a upi://pay URI decoded from a QR code.
func ParseIntent(raw string) (*Intent, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrNotUPIIntent
	}
	if !strings.EqualFold(u.Scheme, "upi") || !strings.EqualFold(u.Host, "pay") {
		return nil, ErrNotUPIIntent
	}

	q := u.Query()
	intent := &Intent{
		PayeeVPA:       strings.ToLower(q.Get("pa")),
		PayeeName:      strings.TrimSpace(q.Get("pn")),
		Currency:       strings.ToUpper(q.Get("cu")),
		TransactionRef: q.Get("tr"),
		Note:           q.Get("tn"),
	}
	if intent.PayeeVPA == "" {
		return nil, errors.New("upi intent has no payee address")
	}
	if am := q.Get("am"); am != "" {
		if v, ok := parsePositive(am); ok {
			intent.Amount = &v
		}
	}

	return intent, nil
}

// MergeIntent fills fields the text did not yield from a scanned QR intent.
// Text always wins; the intent's tr is a merchant reference, not a UTR.
func MergeIntent(info dto.ExtractedPaymentInfo, intent *Intent) dto.ExtractedPaymentInfo {
	if intent == nil {
		return info
	}
	if info.Amount == nil && intent.Amount != nil {
		amt := *intent.Amount
		info.Amount = &amt
		info.AmountTier = dto.AmountTierQR
	}
	if info.UPIID == "" {
		info.UPIID = intent.PayeeVPA
	}
	return info
}
