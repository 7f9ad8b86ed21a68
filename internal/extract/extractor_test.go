package extract

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhatanay/expenseapp/internal/domain"
)

var fixedNow = time.Date(2024, 7, 15, 22, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractorWithClock(func() time.Time { return fixedNow })
}

func TestExtract_UPIDebit(t *testing.T) {
	body := "Rs.45.50 has been debited from account **1234 to VPA merchant@upi SOME MERCHANT on 01-06-24." +
		" Your UPI transaction reference number is 987654. If you did not authorize this transaction..."

	patterns, err := DefaultRegistry().Templates()
	require.NoError(t, err)

	res, err := newTestExtractor().Extract(body, patterns)
	require.NoError(t, err)

	tx := res.Transaction
	assert.Equal(t, "UPI", res.TemplateType)
	assert.Equal(t, "45.50", tx.Amount.StringFixed(2))
	assert.Equal(t, domain.ActionDebit, tx.Action)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 1}, tx.Date)
	assert.Equal(t, "SOME MERCHANT", tx.Merchant)
	require.NotNil(t, tx.Account)
	assert.Equal(t, "1234", *tx.Account)
	require.NotNil(t, tx.Reference)
	assert.Equal(t, "987654", *tx.Reference)
	require.NotNil(t, tx.VPA)
	assert.Equal(t, "merchant@upi", *tx.VPA)
	assert.False(t, res.DateFallback)
	assert.Nil(t, tx.ContextID)
}

func TestExtract_MultilineBodyIsNormalized(t *testing.T) {
	body := "Dear Customer,\r\n\r\nRs.1,200.00 has been debited from account **1234 to VPA \n" +
		"shop@okaxis   CORNER SHOP on 09-03-24.\n\nYour UPI transaction reference number is 11223344.\n"

	patterns, err := DefaultRegistry().Templates("UPI")
	require.NoError(t, err)

	res, err := newTestExtractor().Extract(body, patterns)
	require.NoError(t, err)
	assert.Equal(t, "1200.00", res.Transaction.Amount.StringFixed(2))
	assert.Equal(t, "CORNER SHOP", res.Transaction.Merchant)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 9}, res.Transaction.Date)
}

func TestExtract_CreditClassification(t *testing.T) {
	body := "Rs.500.00 is successfully credited to your account **9876 by VPA friend@okicici A FRIEND on 02-06-24." +
		" Your UPI transaction reference number is 445566."

	patterns, err := DefaultRegistry().Templates()
	require.NoError(t, err)

	res, err := newTestExtractor().Extract(body, patterns)
	require.NoError(t, err)
	assert.Equal(t, "UPI_CREDIT", res.TemplateType)
	assert.Equal(t, domain.ActionCredit, res.Transaction.Action)
}

func TestExtract_BankTemplateDefaultsAndLayout(t *testing.T) {
	body := "Dear Customer, The amount debited/drawn is INR 2,345.00 from your account XX5678" +
		" towards bill payment on 05-JUN-2024 on account of ELECTRICITY_BOARD. Thank you."

	patterns, err := DefaultRegistry().Templates("BANK")
	require.NoError(t, err)

	res, err := newTestExtractor().Extract(body, patterns)
	require.NoError(t, err)
	assert.Equal(t, "2345.00", res.Transaction.Amount.StringFixed(2))
	assert.Equal(t, "ELECTRICITY_BOARD", res.Transaction.Merchant)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 5}, res.Transaction.Date)
	assert.Nil(t, res.Transaction.Reference)
	assert.Nil(t, res.Transaction.VPA)
}

func TestExtract_DateFallback(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(domain.Template{
		Type:       "CARD",
		Expression: `spent Rs (?P<amount>[\d.]+) on (?P<date>\S+)`,
	}))
	patterns, _ := r.Templates()

	res, err := newTestExtractor().Extract("You spent Rs 99.9 on 31-02-24", patterns)
	require.NoError(t, err)
	assert.True(t, res.DateFallback)
	assert.Equal(t, "31-02-24", res.RawDate)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.July, Day: 15}, res.Transaction.Date)
	assert.Equal(t, "99.90", res.Transaction.Amount.StringFixed(2))
	assert.Equal(t, domain.UnknownMerchant, res.Transaction.Merchant)
}

func TestExtract_FirstTemplateWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(domain.Template{Type: "GENERIC", Expression: `Rs\.(?P<amount>[\d.]+)`}))
	require.NoError(t, r.Register(domain.Template{Type: "SPECIFIC", Expression: `Rs\.(?P<amount>[\d.]+) to (?P<merchant>\w+)`}))

	body := "Rs.10.00 to CAFE"
	ex := newTestExtractor()

	ordered, err := r.Templates("GENERIC", "SPECIFIC")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		res, err := ex.Extract(body, ordered)
		require.NoError(t, err)
		assert.Equal(t, "GENERIC", res.TemplateType)
		assert.Equal(t, domain.UnknownMerchant, res.Transaction.Merchant)
	}

	reversed, err := r.Templates("SPECIFIC", "GENERIC")
	require.NoError(t, err)
	res, err := ex.Extract(body, reversed)
	require.NoError(t, err)
	assert.Equal(t, "SPECIFIC", res.TemplateType)
	assert.Equal(t, "CAFE", res.Transaction.Merchant)
}

func TestExtract_NonNumericAmountIsNotMatched(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(domain.Template{Type: "LOOSE", Expression: `paid (?P<amount>\S+) to`}))
	require.NoError(t, r.Register(domain.Template{Type: "FALLBACK", Expression: `paid`}))
	patterns, _ := r.Templates()

	_, err := newTestExtractor().Extract("you paid abc to someone", patterns)
	assert.ErrorIs(t, err, ErrNotMatched)
}

func TestExtract_Unmatched(t *testing.T) {
	patterns, _ := DefaultRegistry().Templates()
	_, err := newTestExtractor().Extract("Your OTP is 123456", patterns)
	assert.ErrorIs(t, err, ErrNotMatched)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line breaks joined", "a\nb\r\nc", "abc"},
		{"whitespace collapsed", "a  \t b", "a b"},
		{"trimmed", "  a b  ", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
