package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// GetCursorWithClient returns the cursor of a (user, source) pair, or nil.
func GetCursorWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, source string) (*domain.Cursor, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT user_id, source, last_message_id, watermark, updated_ts
		FROM %s
		WHERE user_id = @user_id
		  AND source = @source
		LIMIT 1
	`, ds.Table(cursorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "source", Value: source},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCursor: query read: %w", err)
	}

	var row CursorRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCursor: iter next: %w", err)
	}
	return row.toDomain(), nil
}

// PutCursorWithClient upserts a cursor. An older watermark than the stored
// one leaves the row untouched.
func PutCursorWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c domain.Cursor) error {
	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @user_id AS user_id, @source AS source, @last_message_id AS last_message_id,
		              @watermark AS watermark, @updated_ts AS updated_ts) S
		ON T.user_id = S.user_id
		   AND T.source = S.source
		WHEN MATCHED AND S.watermark >= T.watermark THEN
		  UPDATE SET last_message_id = S.last_message_id,
		             watermark = S.watermark,
		             updated_ts = S.updated_ts
		WHEN NOT MATCHED THEN
		  INSERT (user_id, source, last_message_id, watermark, updated_ts)
		  VALUES (S.user_id, S.source, S.last_message_id, S.watermark, S.updated_ts)
	`, ds.Table(cursorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: c.UserID},
		{Name: "source", Value: c.Source},
		{Name: "last_message_id", Value: c.LastMessageID},
		{Name: "watermark", Value: c.Watermark.UTC()},
		{Name: "updated_ts", Value: time.Now().UTC()},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("PutCursor: %w", err)
	}
	return nil
}
