package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// Ledger is an in-memory implementation of domain.Ledger and
// domain.ContextRepository. It is safe for concurrent use.
// Data is lost on restart; use the BigQuery ledger for persistence.
type Ledger struct {
	mu        sync.RWMutex
	txs       map[string]*domain.Transaction
	order     []string
	byMessage map[string]string
	contexts  map[string]*domain.LedgerContext

	// writeHook, when set, runs before each row of a write and can fail it.
	writeHook func(i int, tx domain.Transaction) error
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		txs:       make(map[string]*domain.Transaction),
		byMessage: make(map[string]string),
		contexts:  make(map[string]*domain.LedgerContext),
	}
}

// SetWriteHook installs a hook called for every row of Stage, Commit and
// CommitBatch before anything is written. Used to inject storage faults.
func (l *Ledger) SetWriteHook(hook func(i int, tx domain.Transaction) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeHook = hook
}

func messageKey(userID, source, messageID string) string {
	return userID + "\x00" + source + "\x00" + messageID
}

// Stage implements domain.Ledger.
func (l *Ledger) Stage(ctx context.Context, tx domain.Transaction) (string, bool, error) {
	if tx.MessageID == "" {
		return "", false, fmt.Errorf("Stage: message id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := messageKey(tx.UserID, tx.Source, tx.MessageID)
	if id, ok := l.byMessage[key]; ok {
		return id, false, nil
	}
	if l.writeHook != nil {
		if err := l.writeHook(0, tx); err != nil {
			return "", false, fmt.Errorf("Stage: %w", err)
		}
	}

	tx.Staged = true
	id := l.insertLocked(tx)
	l.byMessage[key] = id
	return id, true, nil
}

// Commit implements domain.Ledger.
func (l *Ledger) Commit(ctx context.Context, tx domain.Transaction) (string, error) {
	ids, err := l.CommitBatch(ctx, []domain.Transaction{tx})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CommitBatch implements domain.Ledger. Every row passes the write hook
// before any row is stored, so a failure leaves the ledger untouched.
func (l *Ledger) CommitBatch(ctx context.Context, txs []domain.Transaction) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writeHook != nil {
		for i, tx := range txs {
			if err := l.writeHook(i, tx); err != nil {
				return nil, fmt.Errorf("CommitBatch: row %d: %w", i, err)
			}
		}
	}

	ids := make([]string, len(txs))
	for i, tx := range txs {
		if tx.ID != "" {
			if _, exists := l.txs[tx.ID]; exists {
				ids[i] = tx.ID
				continue
			}
		}
		ids[i] = l.insertLocked(tx)
	}
	return ids, nil
}

func (l *Ledger) insertLocked(tx domain.Transaction) string {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	l.txs[tx.ID] = &tx
	l.order = append(l.order, tx.ID)
	return tx.ID
}

// UpdateCategory implements domain.Ledger.
func (l *Ledger) UpdateCategory(ctx context.Context, userID, txID, category, contextID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[txID]
	if !ok || tx.UserID != userID {
		return fmt.Errorf("UpdateCategory: transaction %s: %w", txID, domain.ErrNotFound)
	}
	item := category
	tx.Item = &item
	if tx.ContextID == nil && contextID != "" {
		cid := contextID
		tx.ContextID = &cid
	}
	return nil
}

// QueryByContextAndDate implements domain.Ledger.
func (l *Ledger) QueryByContextAndDate(ctx context.Context, userID, contextID string, from, to civil.Date) ([]*domain.Transaction, error) {
	return l.filter(func(tx *domain.Transaction) bool {
		return tx.UserID == userID &&
			tx.ContextID != nil && *tx.ContextID == contextID &&
			!tx.Date.Before(from) && !tx.Date.After(to)
	}), nil
}

// ListPending implements domain.Ledger.
func (l *Ledger) ListPending(ctx context.Context, userID, contextID string) ([]*domain.Transaction, error) {
	return l.filter(func(tx *domain.Transaction) bool {
		return tx.UserID == userID && tx.Staged && tx.Pending() &&
			(tx.ContextID == nil || *tx.ContextID == contextID)
	}), nil
}

// QueryByUserAndDate implements domain.Ledger.
func (l *Ledger) QueryByUserAndDate(ctx context.Context, userID string, date civil.Date) ([]*domain.Transaction, error) {
	return l.filter(func(tx *domain.Transaction) bool {
		return tx.UserID == userID && tx.Date == date
	}), nil
}

// filter returns copies of matching rows ordered by date, then insertion.
func (l *Ledger) filter(keep func(*domain.Transaction) bool) []*domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.Transaction
	for _, id := range l.order {
		tx := l.txs[id]
		if keep(tx) {
			c := *tx
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Transactions returns a copy of every stored row in insertion order.
func (l *Ledger) Transactions() []*domain.Transaction {
	return l.filter(func(*domain.Transaction) bool { return true })
}

// CreateContext implements domain.ContextRepository.
func (l *Ledger) CreateContext(ctx context.Context, userID, name string) (*domain.LedgerContext, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.contexts {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			return nil, domain.ErrContextExists
		}
	}
	c := &domain.LedgerContext{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	l.contexts[c.ID] = c
	cp := *c
	return &cp, nil
}

// ListContexts implements domain.ContextRepository.
func (l *Ledger) ListContexts(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.LedgerContext
	for _, c := range l.contexts {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindContext implements domain.ContextRepository.
func (l *Ledger) FindContext(ctx context.Context, userID, name string) (*domain.LedgerContext, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, c := range l.contexts {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Ensure Ledger implements the ledger and context interfaces.
var _ domain.Ledger = (*Ledger)(nil)
var _ domain.ContextRepository = (*Ledger)(nil)
