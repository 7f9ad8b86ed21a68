package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// Repository is the BigQuery implementation of the ledger, the context
// repository and the cursor store. It holds a shared BigQuery client to
// avoid creating a new connection for each operation.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewRepository creates a Repository with its own client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, Dataset{ProjectID: projectID, DatasetID: datasetID}), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, ds Dataset) *Repository {
	return &Repository{client: client, ds: ds}
}

// Migrate applies pending schema migrations to the repository's dataset.
func (r *Repository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	return Migrate(ctx, r.client, r.ds, appliedBy)
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Stage delegates to StageTransactionWithClient.
func (r *Repository) Stage(ctx context.Context, tx domain.Transaction) (string, bool, error) {
	return StageTransactionWithClient(ctx, r.client, r.ds, tx)
}

// Commit delegates to CommitTransactionsWithClient with a single row.
func (r *Repository) Commit(ctx context.Context, tx domain.Transaction) (string, error) {
	ids, err := CommitTransactionsWithClient(ctx, r.client, r.ds, []domain.Transaction{tx})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CommitBatch delegates to CommitTransactionsWithClient.
func (r *Repository) CommitBatch(ctx context.Context, txs []domain.Transaction) ([]string, error) {
	return CommitTransactionsWithClient(ctx, r.client, r.ds, txs)
}

// UpdateCategory delegates to UpdateCategoryWithClient.
func (r *Repository) UpdateCategory(ctx context.Context, userID, txID, category, contextID string) error {
	return UpdateCategoryWithClient(ctx, r.client, r.ds, userID, txID, category, contextID)
}

// QueryByContextAndDate delegates to QueryByContextAndDateWithClient.
func (r *Repository) QueryByContextAndDate(ctx context.Context, userID, contextID string, from, to civil.Date) ([]*domain.Transaction, error) {
	return QueryByContextAndDateWithClient(ctx, r.client, r.ds, userID, contextID, from, to)
}

// ListPending delegates to ListPendingWithClient.
func (r *Repository) ListPending(ctx context.Context, userID, contextID string) ([]*domain.Transaction, error) {
	return ListPendingWithClient(ctx, r.client, r.ds, userID, contextID)
}

// QueryByUserAndDate delegates to QueryByUserAndDateWithClient.
func (r *Repository) QueryByUserAndDate(ctx context.Context, userID string, date civil.Date) ([]*domain.Transaction, error) {
	return QueryByUserAndDateWithClient(ctx, r.client, r.ds, userID, date)
}

// CreateContext delegates to CreateContextWithClient.
func (r *Repository) CreateContext(ctx context.Context, userID, name string) (*domain.LedgerContext, error) {
	return CreateContextWithClient(ctx, r.client, r.ds, userID, name)
}

// ListContexts delegates to ListContextsWithClient.
func (r *Repository) ListContexts(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	return ListContextsWithClient(ctx, r.client, r.ds, userID)
}

// FindContext delegates to FindContextWithClient.
func (r *Repository) FindContext(ctx context.Context, userID, name string) (*domain.LedgerContext, error) {
	return FindContextWithClient(ctx, r.client, r.ds, userID, name)
}

// GetCursor delegates to GetCursorWithClient.
func (r *Repository) GetCursor(ctx context.Context, userID, source string) (*domain.Cursor, error) {
	return GetCursorWithClient(ctx, r.client, r.ds, userID, source)
}

// PutCursor delegates to PutCursorWithClient.
func (r *Repository) PutCursor(ctx context.Context, c domain.Cursor) error {
	return PutCursorWithClient(ctx, r.client, r.ds, c)
}

// Ensure Repository implements the storage interfaces.
var (
	_ domain.Ledger            = (*Repository)(nil)
	_ domain.ContextRepository = (*Repository)(nil)
	_ domain.CursorStore       = (*Repository)(nil)
)
