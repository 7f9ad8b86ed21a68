package domain

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrContextExists is returned when a ledger context name is already taken.
	ErrContextExists = errors.New("ledger context already exists")

	// ErrVersionConflict is returned by ConversationStore.Put when the stored
	// state changed since it was read.
	ErrVersionConflict = errors.New("conversation state version conflict")
)

// Ledger is the write/read capability over the transaction store.
type Ledger interface {
	// Stage records an extracted transaction. Staging is idempotent on
	// (user, source, message id): a repeat returns the existing id and created=false.
	Stage(ctx context.Context, tx Transaction) (id string, created bool, err error)

	// Commit records a single manual transaction and returns its id.
	Commit(ctx context.Context, tx Transaction) (string, error)

	// CommitBatch records all transactions or none of them. Rows carrying an
	// id that already exists are not written twice.
	CommitBatch(ctx context.Context, txs []Transaction) ([]string, error)

	// UpdateCategory sets the item/category of a transaction, assigning it to
	// contextID when it has no context yet.
	UpdateCategory(ctx context.Context, userID, txID, category, contextID string) error

	// QueryByContextAndDate lists transactions of a context dated within [from, to].
	QueryByContextAndDate(ctx context.Context, userID, contextID string, from, to civil.Date) ([]*Transaction, error)

	// ListPending lists staged transactions without an item/category that are
	// either unassigned or assigned to contextID, oldest first.
	ListPending(ctx context.Context, userID, contextID string) ([]*Transaction, error)

	// QueryByUserAndDate lists every transaction of a user dated on date.
	QueryByUserAndDate(ctx context.Context, userID string, date civil.Date) ([]*Transaction, error)
}

// ContextRepository manages ledger contexts.
type ContextRepository interface {
	// CreateContext creates a named context; ErrContextExists on collision.
	CreateContext(ctx context.Context, userID, name string) (*LedgerContext, error)

	// ListContexts lists a user's contexts ordered by name.
	ListContexts(ctx context.Context, userID string) ([]*LedgerContext, error)

	// FindContext resolves a name; ErrNotFound when unknown.
	FindContext(ctx context.Context, userID, name string) (*LedgerContext, error)
}

// ConversationStore persists per-user conversation state.
type ConversationStore interface {
	// Get returns the stored state, or a fresh state with Version 0.
	Get(ctx context.Context, userID string) (*ConversationState, error)

	// Put stores state if its Version still matches the stored one and
	// updates state.Version. ErrVersionConflict otherwise.
	Put(ctx context.Context, state *ConversationState) error
}

// CursorStore persists ingestion cursors.
type CursorStore interface {
	// GetCursor returns the cursor or nil when none was stored yet.
	GetCursor(ctx context.Context, userID, source string) (*Cursor, error)

	// PutCursor stores the cursor; a watermark older than the stored one is ignored.
	PutCursor(ctx context.Context, c Cursor) error
}

// MessageSource lists and fetches raw notification messages.
type MessageSource interface {
	// List returns message ids matching query, newest first, at most limit.
	List(ctx context.Context, userID, query string, limit int) ([]string, error)

	// Get fetches one message with its timestamp and body text.
	Get(ctx context.Context, userID, messageID string) (*RawMessage, error)
}

// Notifier pushes a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}
