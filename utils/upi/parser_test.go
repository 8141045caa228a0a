package upi

import (
	"testing"
	"time"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGooglePayScreenshot(t *testing.T) {
	text := `
		₹1,234.56 paid
		Paid to Sai Poultry Farm
		From: Ramesh Kumar
		UPI transaction ID
		412345678901
		12/10/2025, 10:32 am
		ramesh.k@okaxis
	`

	info := Extract(text)

	require.NotNil(t, info.Amount)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(*info.Amount))
	assert.Equal(t, dto.AmountTierContextual, info.AmountTier)
	assert.Equal(t, "412345678901", info.UTR)
	require.NotNil(t, info.Date)
	assert.Equal(t, time.Date(2025, time.October, 12, 0, 0, 0, 0, time.UTC), *info.Date)
	assert.Equal(t, "Ramesh Kumar", info.PayerName)
	assert.Equal(t, "ramesh.k@okaxis", info.UPIID)
}

func TestExtractEmptyText(t *testing.T) {
	info := Extract("")

	assert.True(t, info.IsEmpty())
	assert.Nil(t, info.Amount)
	assert.Empty(t, info.AmountTier)
}

func TestExtractIsDeterministic(t *testing.T) {
	text := "Rs. 2,500.00 received from Suresh Traders UTR: AXIS1234567890 on 03-11-2025"

	first := Extract(text)
	second := Extract(text)

	assert.Equal(t, first, second)
}

func TestExtractFieldsAreIndependent(t *testing.T) {
	// an impossible date must not stop the UTR and payer from being read
	info := Extract("Paid by Anil Sharma\nRef No: HDFC0000123456\nDate 45/19/2025")

	assert.Nil(t, info.Date)
	assert.Equal(t, "HDFC0000123456", info.UTR)
	assert.Equal(t, "Anil Sharma", info.PayerName)
}

func TestContextualAmountPrefixAndSuffix(t *testing.T) {
	cases := map[string]string{
		"₹1,234.56 paid":              "1234.56",
		"Amount: 750.00":              "750.00",
		"Total Rs. 12,34,567.89":      "1234567.89",
		"INR 99.50 debited":           "99.50",
		"you sent 3,000.00 INR today": "3000.00",
		"Paid ₹ 480.00 to Farm":       "480.00",
	}

	for text, want := range cases {
		amt, ok := contextualAmount(text)
		require.True(t, ok, text)
		assert.True(t, decimal.RequireFromString(want).Equal(amt.Value), "%s: got %s", text, amt.Value)
		assert.Equal(t, dto.AmountTierContextual, amt.Tier)
	}
}

func TestContextualAmountRequiresTwoDecimals(t *testing.T) {
	_, ok := contextualAmount("₹500 paid")
	assert.False(t, ok)

	_, ok = contextualAmount("paid 0.00")
	assert.False(t, ok)
}

func TestLooseAmountUsedWhenNoTwoDecimalAmount(t *testing.T) {
	amt, ok := ExtractAmount("Payment of ₹500 successful\nRef 123")

	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(500).Equal(amt.Value))
	assert.Equal(t, dto.AmountTierLoose, amt.Tier)
}

func TestLooseAmountSkipsZero(t *testing.T) {
	amt, ok := looseAmount("Rs 0 cashback, Rs 1,200 sent")

	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1200).Equal(amt.Value))
}

func TestPlausibleAmountPicksLargest(t *testing.T) {
	amt, ok := ExtractAmount("Order 42 completed\nsettled 1500.00 today")

	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1500).Equal(amt.Value))
	assert.Equal(t, dto.AmountTierPlausible, amt.Tier)
}

func TestPlausibleAmountIgnoresOutOfRange(t *testing.T) {
	// 5 is too small, the 12 digit reference is too large
	amt, ok := plausibleAmount("5 items 640 total weight ref 412345678901")

	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(640).Equal(amt.Value))

	_, ok = plausibleAmount("step 1 of 3")
	assert.False(t, ok)
}

func TestContextualTierWinsOverLargerNumbers(t *testing.T) {
	amt, ok := ExtractAmount("₹250.00 paid\nBalance 98,000")

	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("250").Equal(amt.Value))
}

func TestAmountRoundedToTwoPlaces(t *testing.T) {
	amt, ok := plausibleAmount("value 1234.5678")

	require.True(t, ok)
	assert.Equal(t, "1234.57", amt.Value.StringFixed(2))
	assert.LessOrEqual(t, -amt.Value.Exponent(), int32(2))
}

func TestUTRLabelledBeforeGeneric(t *testing.T) {
	text := "Order AB12345678CD\nUTR: 309876543210"

	utr, ok := firstMatch(text, labelledUTR, genericUTR)

	require.True(t, ok)
	assert.Equal(t, "309876543210", utr)
}

func TestUTRUppercasedAndBounded(t *testing.T) {
	utr, ok := genericUTR("txn id: axis9988776655 ok")
	require.True(t, ok)
	assert.Equal(t, "AXIS9988776655", utr)

	// too short, too long, and words without digits are not references
	_, ok = genericUTR("ABC123 SUCCESSFUL 123456789012345678901")
	assert.False(t, ok)
}

func TestNumericDateFormats(t *testing.T) {
	d, ok := numericDate("on 5-3-24 at noon")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), d)

	d, ok = numericDate("29/02/2024")
	require.True(t, ok)
	assert.Equal(t, time.February, d.Month())

	_, ok = numericDate("31/02/2025")
	assert.False(t, ok)
}

func TestNamedMonthDate(t *testing.T) {
	info := Extract("Completed\n7 Sept 2025, 09:14 pm")

	require.NotNil(t, info.Date)
	assert.Equal(t, time.Date(2025, time.September, 7, 0, 0, 0, 0, time.UTC), *info.Date)
}

func TestPayerNameLabels(t *testing.T) {
	cases := map[string]string{
		"Received from Lakshmi Eggs\n500":  "Lakshmi Eggs",
		"Sender: Gopal Rao\nUPI":           "Gopal Rao",
		"paid by   Meena Devi  \n":         "Meena Devi",
		"Transferred from Vijay Stores\n1": "Vijay Stores",
	}

	for text, want := range cases {
		name, ok := payerName(text)
		require.True(t, ok, text)
		assert.Equal(t, want, name)
	}
}

func TestPayerNameTooShortIsSkipped(t *testing.T) {
	_, ok := payerName("from: ab\n")
	assert.False(t, ok)
}

func TestExtractedFieldsSatisfyFormats(t *testing.T) {
	inputs := []string{
		"",
		"₹₹₹ ... ,,, ///",
		"Rs. 0.00 paid 0/0/0000",
		"from a\npaid by\nsender:",
		"UTR 1234567890123456789012345",
		"₹1,00,00,000.00 paid\n99999999999.99",
		"12-13-2025 17/08/25 ₹12 from X Y Z Farms Pvt Ltd",
	}

	for _, text := range inputs {
		info := Extract(text)
		if info.Amount != nil {
			assert.True(t, info.Amount.IsPositive(), text)
			assert.LessOrEqual(t, -info.Amount.Exponent(), int32(2), text)
		}
		if info.UTR != "" {
			assert.Regexp(t, `^[A-Z0-9]{10,20}$`, info.UTR, text)
		}
		if info.PayerName != "" {
			assert.GreaterOrEqual(t, len(info.PayerName), 3, text)
			assert.LessOrEqual(t, len(info.PayerName), 50, text)
		}
	}
}

func TestPlausibleAmountSkipsDatesTimesAndIDs(t *testing.T) {
	cases := map[string]string{
		"Order 42 completed\nsettled 1500.00 on 12/10/2025": "1500",
		"Recharge of 20 done at 11:45":                      "20",
		"Sent via ravi123@ybl, bill 60":                     "60",
		"Ref AB1234567890 for 75 trays":                     "75",
		"settled 820 on 3 Oct 2025":                         "820",
	}

	for text, want := range cases {
		amt, ok := ExtractAmount(text)
		require.True(t, ok, text)
		assert.True(t, decimal.RequireFromString(want).Equal(amt.Value), "%s: got %s", text, amt.Value)
		assert.Equal(t, dto.AmountTierPlausible, amt.Tier, text)
	}
}

func TestAmountGluedToLabel(t *testing.T) {
	info := Extract("Amount1500.00")
	require.NotNil(t, info.Amount)
	assert.True(t, decimal.NewFromInt(1500).Equal(*info.Amount))
	assert.Equal(t, dto.AmountTierContextual, info.AmountTier)
	assert.Empty(t, info.UTR)

	info = Extract("Transaction Amount1500.00\nUTR 412345678901")
	assert.Equal(t, "412345678901", info.UTR)
	require.NotNil(t, info.Amount)
	assert.True(t, decimal.NewFromInt(1500).Equal(*info.Amount))

	amt, ok := ExtractAmount("Paid to Ravi Total1500")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1500).Equal(amt.Value))
}

func TestGenericUTRSkipsAmountTokens(t *testing.T) {
	_, ok := genericUTR("AMOUNT1500 paid")
	assert.False(t, ok)

	_, ok = genericUTR("Rs123456789.00")
	assert.False(t, ok)

	utr, ok := genericUTR("INR1500.00 sent, ref SBIN0012345678")
	require.True(t, ok)
	assert.Equal(t, "SBIN0012345678", utr)
}

func TestUPIIDIgnoresEmailAddresses(t *testing.T) {
	_, ok := upiID("Contact support@gmail.com for help")
	assert.False(t, ok)

	info := Extract("Write to support@gmail.com\nPaid to ravi@okaxis.")
	assert.Equal(t, "ravi@okaxis", info.UPIID)

	vpa, ok := upiID("9876543210@ybl")
	require.True(t, ok)
	assert.Equal(t, "9876543210@ybl", vpa)
}
