package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	UserID        string              `bigquery:"user_id"`        // REQUIRED
	ContextID     bigquery.NullString `bigquery:"context_id"`     // NULLABLE until tagged

	Source    string `bigquery:"source"`     // empty for manual rows
	MessageID string `bigquery:"message_id"` // empty for manual rows

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Action          string     `bigquery:"action"`           // DEBIT | CREDIT
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Merchant        string     `bigquery:"merchant"`

	Reference bigquery.NullString `bigquery:"reference"`
	Account   bigquery.NullString `bigquery:"account"`
	VPA       bigquery.NullString `bigquery:"vpa"`

	TemplateType string              `bigquery:"template_type"`
	Item         bigquery.NullString `bigquery:"item"`
	Staged       bool                `bigquery:"staged"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// transactionParam is the STRUCT shape used in DML parameters. Optional
// strings travel as "" and are turned into NULL in SQL.
type transactionParam struct {
	TransactionID   string     `bigquery:"transaction_id"`
	UserID          string     `bigquery:"user_id"`
	ContextID       string     `bigquery:"context_id"`
	Source          string     `bigquery:"source"`
	MessageID       string     `bigquery:"message_id"`
	TransactionDate civil.Date `bigquery:"transaction_date"`
	Action          string     `bigquery:"action"`
	Amount          *big.Rat   `bigquery:"amount"`
	Merchant        string     `bigquery:"merchant"`
	Reference       string     `bigquery:"reference"`
	Account         string     `bigquery:"account"`
	VPA             string     `bigquery:"vpa"`
	TemplateType    string     `bigquery:"template_type"`
	Item            string     `bigquery:"item"`
	Staged          bool       `bigquery:"staged"`
	CreatedTS       time.Time  `bigquery:"created_ts"`
}

const transactionColumns = `
	transaction_id,
	user_id,
	context_id,
	source,
	message_id,
	transaction_date,
	action,
	amount,
	merchant,
	reference,
	account,
	vpa,
	template_type,
	item,
	staged,
	created_ts,
	updated_ts`

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s *string) bigquery.NullString {
	if s == nil || *s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func fromNull(ns bigquery.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.StringVal
	return &s
}

func toParam(tx domain.Transaction) transactionParam {
	created := tx.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return transactionParam{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		ContextID:       deref(tx.ContextID),
		Source:          tx.Source,
		MessageID:       tx.MessageID,
		TransactionDate: tx.Date,
		Action:          string(tx.Action),
		Amount:          tx.Amount.Rat(),
		Merchant:        tx.Merchant,
		Reference:       deref(tx.Reference),
		Account:         deref(tx.Account),
		VPA:             deref(tx.VPA),
		TemplateType:    tx.TemplateType,
		Item:            deref(tx.Item),
		Staged:          tx.Staged,
		CreatedTS:       created,
	}
}

// ToRow converts a domain transaction into its table row.
func ToRow(tx domain.Transaction) *TransactionRow {
	p := toParam(tx)
	return &TransactionRow{
		TransactionID:   p.TransactionID,
		UserID:          p.UserID,
		ContextID:       nullString(tx.ContextID),
		Source:          p.Source,
		MessageID:       p.MessageID,
		TransactionDate: p.TransactionDate,
		Action:          p.Action,
		Amount:          p.Amount,
		Merchant:        p.Merchant,
		Reference:       nullString(tx.Reference),
		Account:         nullString(tx.Account),
		VPA:             nullString(tx.VPA),
		TemplateType:    p.TemplateType,
		Item:            nullString(tx.Item),
		Staged:          p.Staged,
		CreatedTS:       p.CreatedTS,
	}
}

// ToDomain converts a table row into a domain transaction.
func (r *TransactionRow) ToDomain() (*domain.Transaction, error) {
	amount := decimal.Zero
	if r.Amount != nil {
		d, err := decimal.NewFromString(r.Amount.FloatString(2))
		if err != nil {
			return nil, fmt.Errorf("ToDomain: amount of %s: %w", r.TransactionID, err)
		}
		amount = d
	}
	return &domain.Transaction{
		ID:           r.TransactionID,
		UserID:       r.UserID,
		ContextID:    fromNull(r.ContextID),
		Source:       r.Source,
		MessageID:    r.MessageID,
		Date:         r.TransactionDate,
		Action:       domain.Action(r.Action),
		Amount:       amount,
		Merchant:     r.Merchant,
		Reference:    fromNull(r.Reference),
		Account:      fromNull(r.Account),
		VPA:          fromNull(r.VPA),
		TemplateType: r.TemplateType,
		Item:         fromNull(r.Item),
		Staged:       r.Staged,
		CreatedAt:    r.CreatedTS,
	}, nil
}

// ContextRow is one row of the ledger_contexts table.
type ContextRow struct {
	ContextID string    `bigquery:"context_id"`
	UserID    string    `bigquery:"user_id"`
	Name      string    `bigquery:"name"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

func (r *ContextRow) toDomain() *domain.LedgerContext {
	return &domain.LedgerContext{
		ID:        r.ContextID,
		UserID:    r.UserID,
		Name:      r.Name,
		CreatedAt: r.CreatedTS,
	}
}

// CursorRow is one row of the sync_cursors table.
type CursorRow struct {
	UserID        string    `bigquery:"user_id"`
	Source        string    `bigquery:"source"`
	LastMessageID string    `bigquery:"last_message_id"`
	Watermark     time.Time `bigquery:"watermark"`
	UpdatedTS     time.Time `bigquery:"updated_ts"`
}

func (r *CursorRow) toDomain() *domain.Cursor {
	return &domain.Cursor{
		UserID:        r.UserID,
		Source:        r.Source,
		LastMessageID: r.LastMessageID,
		Watermark:     r.Watermark,
	}
}
