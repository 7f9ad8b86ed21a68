package extract

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// ErrNotMatched is returned when no template yields a valid record.
var ErrNotMatched = errors.New("no template matched")

var whitespaceRun = regexp.MustCompile(`\s+`)

// Result is a successful extraction.
type Result struct {
	Transaction  domain.Transaction
	TemplateType string

	// DateFallback is set when the date group did not parse and the
	// processing date was used instead.
	DateFallback bool
	RawDate      string
}

// Extractor turns normalized notification text into transactions.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor using the wall clock for date fallback.
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// NewExtractorWithClock creates an extractor with a fixed clock, for tests.
func NewExtractorWithClock(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

// Normalize joins line breaks and collapses whitespace runs to one space.
// Expressions are written against this form.
func Normalize(text string) string {
	text = strings.NewReplacer("\r\n", "", "\r", "", "\n", "").Replace(text)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Extract tries patterns in order; the first whose expression matches wins.
// The returned transaction has no owner or context.
func (e *Extractor) Extract(text string, patterns []*Pattern) (*Result, error) {
	body := Normalize(text)
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		return e.build(p, groups(p.re, m))
	}
	return nil, ErrNotMatched
}

func (e *Extractor) build(p *Pattern, g map[string]string) (*Result, error) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(g["amount"], ",", ""))
	if err != nil {
		return nil, ErrNotMatched
	}

	merchant := strings.TrimSpace(g["merchant"])
	if merchant == "" {
		merchant = domain.UnknownMerchant
	}

	res := &Result{TemplateType: p.Type, RawDate: g["date"]}
	date, err := time.Parse(p.Layout(), g["date"])
	if err != nil {
		res.DateFallback = true
		res.Transaction.Date = domain.Today(e.now())
	} else {
		res.Transaction.Date = civil.DateOf(date)
	}

	res.Transaction.Action = p.Action()
	res.Transaction.Amount = amount.Round(2)
	res.Transaction.Merchant = merchant
	res.Transaction.Reference = domain.StringPtr(strings.TrimSpace(g["ref"]))
	res.Transaction.Account = domain.StringPtr(strings.TrimSpace(g["account"]))
	res.Transaction.VPA = domain.StringPtr(strings.TrimSpace(g["vpa"]))
	res.Transaction.TemplateType = p.Type
	return res, nil
}

func groups(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = m[i]
		}
	}
	return out
}
