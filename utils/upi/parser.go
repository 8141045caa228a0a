// Package upi reads payment fields out of OCR text taken from UPI payment
// screenshots (Google Pay, PhonePe, Paytm, BHIM and bank apps).
package upi

import (
	"regexp"
	"strings"
	"time"

	"github.com/Aashish23092/farm-payment-ocr/dto"
)

// Strategy is one way of pulling a field out of OCR text.
type Strategy[T any] func(text string) (T, bool)

// firstMatch runs strategies in order and returns the first value found.
func firstMatch[T any](text string, strategies ...Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s(text); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

var (
	labelledUTRRegex = regexp.MustCompile(`(?i)\b(?:utr|upi\s*ref(?:erence)?|ref(?:erence)?|transaction|txn)\.?\s*(?:no|number|id)?\.?\s*[:#\-]?\s*([A-Z0-9]{10,20})\b`)
	utrTokenRegex    = regexp.MustCompile(`\b[A-Za-z0-9]{10,20}\b`)
	amountLabelRegex = regexp.MustCompile(`(?i)^(?:rs|inr|amt|amount|total|paid)\d`)

	numericDateRegex = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})\b`)
	namedDateRegex   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
	timeRegex        = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]\.?m\b\.?)?`)

	payerRegex = regexp.MustCompile(`(?i)\b(?:received from|paid by|sender|from)\b\s*:?\s*([A-Za-z ]{3,50})`)

	// handle@provider, e.g. 9876543210@ybl or ramesh.k@okaxis. A provider
	// followed by ".com" and the like is an e-mail address; see vpaSpans.
	vpaRegex = regexp.MustCompile(`\b([a-zA-Z0-9][a-zA-Z0-9._-]{1,255}@[a-zA-Z]{2,64})\b`)
)

// Extract reads every payment field it can find from raw OCR text.
// Fields are extracted independently; a missing field never blocks another.
func Extract(text string) dto.ExtractedPaymentInfo {
	var info dto.ExtractedPaymentInfo

	if amt, ok := ExtractAmount(text); ok {
		info.Amount = &amt.Value
		info.AmountTier = amt.Tier
	}
	if utr, ok := firstMatch(text, labelledUTR, genericUTR); ok {
		info.UTR = utr
	}
	if date, ok := firstMatch(text, numericDate, namedMonthDate); ok {
		info.Date = &date
	}
	if name, ok := payerName(text); ok {
		info.PayerName = name
	}
	if vpa, ok := upiID(text); ok {
		info.UPIID = vpa
	}

	return info
}

func labelledUTR(text string) (string, bool) {
	for _, loc := range labelledUTRRegex.FindAllStringSubmatchIndex(text, -1) {
		tok := text[loc[2]:loc[3]]
		if hasDigit(tok) && !amountLike(text, loc[2], loc[3]) {
			return strings.ToUpper(tok), true
		}
	}
	return "", false
}

// genericUTR takes the first standalone 10-20 character alphanumeric token.
// Tokens without a digit are words ("SUCCESSFUL", "Transaction"), not references.
func genericUTR(text string) (string, bool) {
	spans := utrSpans(text)
	if len(spans) == 0 {
		return "", false
	}
	return strings.ToUpper(text[spans[0][0]:spans[0][1]]), true
}

// utrSpans returns the offsets of every token that can be a reference.
func utrSpans(text string) [][]int {
	var spans [][]int
	for _, loc := range utrTokenRegex.FindAllStringIndex(text, -1) {
		if hasDigit(text[loc[0]:loc[1]]) && !amountLike(text, loc[0], loc[1]) {
			spans = append(spans, loc)
		}
	}
	return spans
}

// amountLike reports whether the token text[start:end] is really an amount
// run together by OCR: a label glued to the numeral ("Amount1500") or a
// numeral with a decimal tail ("Rs1500.00").
func amountLike(text string, start, end int) bool {
	if amountLabelRegex.MatchString(text[start:end]) {
		return true
	}
	return end+1 < len(text) && (text[end] == '.' || text[end] == ',') && isDigit(text[end+1])
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// numericDate parses the first D/M/Y looking substring, day first.
// An impossible date (31/02/2025) is dropped rather than guessed.
func numericDate(text string) (time.Time, bool) {
	m := numericDateRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	layout := "2/1/2006"
	if len(m[3]) == 2 {
		layout = "2/1/06"
	}
	t, err := time.Parse(layout, m[1]+"/"+m[2]+"/"+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func namedMonthDate(text string) (time.Time, bool) {
	m := namedDateRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	month := strings.ToLower(m[2])
	if len(month) > 3 {
		month = month[:3]
	}
	t, err := time.Parse("2 Jan 2006", m[1]+" "+strings.ToUpper(month[:1])+month[1:]+" "+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func payerName(text string) (string, bool) {
	for _, m := range payerRegex.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if len(name) >= 3 && len(name) <= 50 {
			return name, true
		}
	}
	return "", false
}

func upiID(text string) (string, bool) {
	spans := vpaSpans(text)
	if len(spans) == 0 {
		return "", false
	}
	return strings.ToLower(text[spans[0][0]:spans[0][1]]), true
}

// vpaSpans returns the offsets of every UPI ID, skipping e-mail addresses,
// whose provider part continues with a dot and a domain label.
func vpaSpans(text string) [][]int {
	var spans [][]int
	for _, loc := range vpaRegex.FindAllStringSubmatchIndex(text, -1) {
		end := loc[3]
		if end+1 < len(text) && text[end] == '.' && isASCIILetter(text[end+1]) {
			continue
		}
		spans = append(spans, loc[2:4])
	}
	return spans
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
