package upi

import (
	"regexp"
	"strings"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/shopspring/decimal"
)

// Amount is an extracted payment amount and the tier that found it.
type Amount struct {
	Value decimal.Decimal
	Tier  dto.AmountTier
}

const (
	// numeral with exactly two decimals, western (1,234.56) or Indian (1,23,456.78) grouping
	twoDecimalNumeral = `(?:\d{1,3}(?:,\d{2,3})+|\d+)\.\d{2}\b`
	looseNumeral      = `(?:\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d{1,2})?\b`
)

var (
	// Keywords have no trailing \b so OCR output like "Amount1500.00" still
	// matches; a numeral must follow directly.
	contextualAmountRegex = regexp.MustCompile(
		`(?i)(?:₹|\brs\.?|\binr|\bpaid|\bamount|\btotal)[\s:\-]*(?:₹|rs\.?|inr)?\s*(` + twoDecimalNumeral + `)` +
			`|(` + twoDecimalNumeral + `)\s*(?:₹|rs\b|inr\b|paid\b|amount\b|total\b)`)
	looseAmountRegex = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr)\s*(` + looseNumeral + `)`)
	// The numeral is group 1. Any non-numeric rune may precede it, letters included.
	anyNumeralRegex  = regexp.MustCompile(`(?:^|[^\d.,])((?:\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d+)?)\b`)
	nonNumericRegex  = regexp.MustCompile(`[^0-9.]`)
)

var (
	minPlausibleAmount = decimal.NewFromInt(10)
	maxPlausibleAmount = decimal.NewFromInt(10_000_000)
)

// ExtractAmount runs the amount tiers in order: contextual, loose, plausible.
// A later tier only runs when every earlier tier found nothing.
func ExtractAmount(text string) (Amount, bool) {
	return firstMatch(text, contextualAmount, looseAmount, plausibleAmount)
}

// contextualAmount finds a two-decimal numeral next to a currency marker or
// a word like "paid" / "total", before or after it.
func contextualAmount(text string) (Amount, bool) {
	for _, m := range contextualAmountRegex.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, ok := parsePositive(raw); ok {
			return Amount{Value: v, Tier: dto.AmountTierContextual}, true
		}
	}
	return Amount{}, false
}

// looseAmount accepts any numeral format as long as a currency marker precedes it.
func looseAmount(text string) (Amount, bool) {
	for _, m := range looseAmountRegex.FindAllStringSubmatch(text, -1) {
		if v, ok := parsePositive(m[1]); ok {
			return Amount{Value: v, Tier: dto.AmountTierLoose}, true
		}
	}
	return Amount{}, false
}

// plausibleAmount picks the largest numeral within the plausible payment
// range. On a payment screenshot the amount is usually the biggest number
// that is not a reference or phone number. Dates, times, references and
// UPI IDs are blanked out first.
func plausibleAmount(text string) (Amount, bool) {
	var best decimal.Decimal
	found := false

	for _, m := range anyNumeralRegex.FindAllStringSubmatch(withoutNonAmounts(text), -1) {
		v, ok := parsePositive(m[1])
		if !ok {
			continue
		}
		if v.LessThan(minPlausibleAmount) || v.GreaterThan(maxPlausibleAmount) {
			continue
		}
		if !found || v.GreaterThan(best) {
			best = v
			found = true
		}
	}

	if !found {
		return Amount{}, false
	}
	return Amount{Value: best, Tier: dto.AmountTierPlausible}, true
}

// withoutNonAmounts replaces every date, time, reference and UPI ID in text
// with spaces, keeping all other byte offsets intact.
func withoutNonAmounts(text string) string {
	b := []byte(text)
	blank := func(loc []int) {
		for i := loc[0]; i < loc[1]; i++ {
			b[i] = ' '
		}
	}
	for _, re := range []*regexp.Regexp{numericDateRegex, namedDateRegex, timeRegex} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			blank(loc)
		}
	}
	for _, loc := range vpaSpans(text) {
		blank(loc)
	}
	for _, loc := range utrSpans(text) {
		blank(loc)
	}
	return string(b)
}

func parsePositive(raw string) (decimal.Decimal, bool) {
	cleaned := nonNumericRegex.ReplaceAllString(raw, "")
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v.Round(2), true
}
