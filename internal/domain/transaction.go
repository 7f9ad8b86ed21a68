package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Action is the direction of money movement for a transaction.
type Action string

const (
	ActionDebit  Action = "DEBIT"
	ActionCredit Action = "CREDIT"
)

// UnknownMerchant is stored when a template carries no merchant group.
const UnknownMerchant = "UNKNOWN"

// DefaultDateLayout is the day-month-2digit-year layout alert bodies use.
const DefaultDateLayout = "02-01-06"

// Template describes one notification format: a type tag, the expression
// written against normalized text, and the sender address to query.
// Templates are immutable once loaded.
type Template struct {
	Type       string `yaml:"type"`
	Expression string `yaml:"expression"`
	Sender     string `yaml:"sender"`
	DateLayout string `yaml:"date_layout,omitempty"`
}

// Action derives the transaction direction from the template's type tag.
func (t Template) Action() Action {
	if strings.Contains(strings.ToUpper(t.Type), "CREDIT") {
		return ActionCredit
	}
	return ActionDebit
}

// Layout returns the date layout, falling back to DefaultDateLayout.
func (t Template) Layout() string {
	if t.DateLayout == "" {
		return DefaultDateLayout
	}
	return t.DateLayout
}

// RawMessage is one message produced by a message source. Only its ID is
// retained after processing.
type RawMessage struct {
	ID        string
	Timestamp time.Time
	Body      string
}

// Transaction is one normalized ledger row, produced either by extraction
// (staged) or by a manual chat "add" (committed).
type Transaction struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	ContextID *string `json:"context_id,omitempty"` // nil until the transaction is tagged or assigned

	Source    string `json:"source,omitempty"`     // message source name; empty for manual rows
	MessageID string `json:"message_id,omitempty"` // source message id; empty for manual rows

	Date     civil.Date      `json:"date"`
	Action   Action          `json:"action"`
	Amount   decimal.Decimal `json:"amount"` // two fraction digits
	Merchant string          `json:"merchant"`

	Reference *string `json:"reference,omitempty"` // source-provided idempotency token
	Account   *string `json:"account,omitempty"`
	VPA       *string `json:"vpa,omitempty"`

	TemplateType string  `json:"template_type,omitempty"`
	Item         *string `json:"item,omitempty"` // item/category assigned by the user
	Staged       bool    `json:"staged"`

	CreatedAt time.Time `json:"created_at"`
}

// Pending reports whether the transaction still awaits an item/category.
func (t *Transaction) Pending() bool {
	return t.Item == nil || *t.Item == ""
}

// LedgerContext is a named grouping ("event") transactions are recorded under.
type LedgerContext struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Cursor bounds the next fetch window for one (user, source) pair.
type Cursor struct {
	UserID        string
	Source        string
	LastMessageID string
	Watermark     time.Time
}

// Advance returns the cursor moved to msg. The watermark never decreases.
func (c Cursor) Advance(msg RawMessage) Cursor {
	next := c
	next.LastMessageID = msg.ID
	if msg.Timestamp.After(c.Watermark) {
		next.Watermark = msg.Timestamp
	}
	return next
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Today returns the current calendar day in UTC.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now.UTC())
}
