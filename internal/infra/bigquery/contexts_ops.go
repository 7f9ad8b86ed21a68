package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// CreateContextWithClient inserts a context unless the user already has one
// with the same name, compared case-insensitively.
func CreateContextWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, name string) (*domain.LedgerContext, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("CreateContext: name cannot be empty")
	}

	row := ContextRow{
		ContextID: uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedTS: time.Now().UTC(),
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @context_id AS context_id, @user_id AS user_id, @name AS name, @created_ts AS created_ts) S
		ON T.user_id = S.user_id
		   AND LOWER(T.name) = LOWER(S.name)
		WHEN NOT MATCHED THEN
		  INSERT (context_id, user_id, name, created_ts)
		  VALUES (S.context_id, S.user_id, S.name, S.created_ts)
	`, ds.Table(contextsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "context_id", Value: row.ContextID},
		{Name: "user_id", Value: row.UserID},
		{Name: "name", Value: row.Name},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("CreateContext: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("CreateContext: %q: %w", name, domain.ErrContextExists)
	}
	return row.toDomain(), nil
}

// ListContextsWithClient lists a user's contexts ordered by name.
func ListContextsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]*domain.LedgerContext, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT context_id, user_id, name, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY name
	`, ds.Table(contextsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	out, err := readContexts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListContexts: %w", err)
	}
	return out, nil
}

// FindContextWithClient resolves a context name, or returns ErrNotFound.
func FindContextWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, name string) (*domain.LedgerContext, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT context_id, user_id, name, created_ts
		FROM %s
		WHERE user_id = @user_id
		  AND LOWER(name) = LOWER(@name)
		LIMIT 1
	`, ds.Table(contextsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "name", Value: strings.TrimSpace(name)},
	}

	out, err := readContexts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindContext: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("FindContext: %q: %w", name, domain.ErrNotFound)
	}
	return out[0], nil
}

func readContexts(ctx context.Context, q *bigquery.Query) ([]*domain.LedgerContext, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []*domain.LedgerContext
	for {
		var r ContextRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}
