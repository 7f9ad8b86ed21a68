package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// Pattern is a template with its compiled expression.
type Pattern struct {
	domain.Template
	re *regexp.Regexp
}

// Registry holds templates in registration order. It is safe for concurrent
// reads once loading has finished.
type Registry struct {
	patterns []*Pattern
	byType   map[string]*Pattern
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]*Pattern)}
}

// Register compiles and appends a template. Type tags are unique.
func (r *Registry) Register(t domain.Template) error {
	if t.Type == "" {
		return fmt.Errorf("Register: template type is required")
	}
	key := strings.ToUpper(t.Type)
	if _, ok := r.byType[key]; ok {
		return fmt.Errorf("Register: duplicate template type %q", t.Type)
	}
	re, err := regexp.Compile(t.Expression)
	if err != nil {
		return fmt.Errorf("Register: compiling %s: %w", t.Type, err)
	}
	p := &Pattern{Template: t, re: re}
	r.patterns = append(r.patterns, p)
	r.byType[key] = p
	return nil
}

// All returns every pattern in registration order.
func (r *Registry) All() []*Pattern {
	return append([]*Pattern(nil), r.patterns...)
}

// Templates resolves type tags in the caller's order, which is the priority
// order extraction uses. With no tags it returns every pattern.
func (r *Registry) Templates(types ...string) ([]*Pattern, error) {
	if len(types) == 0 {
		return r.All(), nil
	}
	out := make([]*Pattern, 0, len(types))
	for _, typ := range types {
		p, ok := r.byType[strings.ToUpper(typ)]
		if !ok {
			return nil, fmt.Errorf("Templates: unknown template type %q", typ)
		}
		out = append(out, p)
	}
	return out, nil
}

// Senders returns the distinct sender addresses of patterns, first-seen order.
func Senders(patterns []*Pattern) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		s := strings.TrimSpace(p.Sender)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

// DefaultTemplates are the HDFC alert formats the bot ships with.
func DefaultTemplates() []domain.Template {
	return []domain.Template{
		{
			Type: "UPI",
			Expression: `Rs\.(?P<amount>[\d,]+\.\d{2}) has been debited from account \*\*(?P<account>\d+)` +
				` to VPA (?P<vpa>\S+) (?P<merchant>[A-Za-z ]+) on (?P<date>\d{2}-\d{2}-\d{2}).*?` +
				`reference number is (?P<ref>\d+)`,
			Sender: "alerts@hdfcbank.net",
		},
		{
			Type: "UPI_CREDIT",
			Expression: `Rs\.(?P<amount>[\d,]+\.\d{2}) is successfully credited to your account \*\*(?P<account>\d+)` +
				` by VPA (?P<vpa>\S+) (?P<merchant>[A-Za-z ]+) on (?P<date>\d{2}-\d{2}-\d{2}).*?` +
				`reference number is (?P<ref>\d+)`,
			Sender: "alerts@hdfcbank.net",
		},
		{
			Type: "BANK",
			Expression: `The amount debited/drawn is\s+INR\s+(?P<amount>[\d,]+\.\d{2}) from your account XX(?P<account>\d+)` +
				`.+?on\s+(?P<date>\d{2}-[A-Z]{3}-\d{4}) on account of (?P<merchant>[A-Z0-9_]+)`,
			Sender:     "alerts@hdfcbank.net",
			DateLayout: "02-Jan-2006",
		},
	}
}

// DefaultRegistry returns a registry loaded with DefaultTemplates.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range DefaultTemplates() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}
