package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// insertValues is the INSERT column list and the matching S.* values, shared
// by the staging and batch MERGE statements.
const insertValues = `
	INSERT (
		transaction_id, user_id, context_id, source, message_id,
		transaction_date, action, amount, merchant,
		reference, account, vpa, template_type, item, staged, created_ts
	)
	VALUES (
		S.transaction_id, S.user_id, NULLIF(S.context_id, ''), S.source, S.message_id,
		S.transaction_date, S.action, S.amount, S.merchant,
		NULLIF(S.reference, ''), NULLIF(S.account, ''), NULLIF(S.vpa, ''),
		S.template_type, NULLIF(S.item, ''), S.staged, S.created_ts
	)`

// StageTransactionWithClient inserts an extracted transaction unless a row
// for the same (user, source, message id) exists. It returns the id of the
// row for that message and whether this call created it.
func StageTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tx domain.Transaction) (string, bool, error) {
	if tx.MessageID == "" {
		return "", false, fmt.Errorf("StageTransaction: message id is required")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Staged = true

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @row.*) S
		ON T.user_id = S.user_id
		   AND T.source = S.source
		   AND T.message_id = S.message_id
		WHEN NOT MATCHED THEN %s
	`, ds.Table(transactionsTable), insertValues))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "row", Value: toParam(tx)},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return "", false, fmt.Errorf("StageTransaction: %w", err)
	}
	if affected > 0 {
		return tx.ID, true, nil
	}

	existing, err := FindTransactionByMessageWithClient(ctx, client, ds, tx.UserID, tx.Source, tx.MessageID)
	if err != nil {
		return "", false, fmt.Errorf("StageTransaction: resolving existing row: %w", err)
	}
	return existing.ID, false, nil
}

// CommitTransactionsWithClient writes txs in a single MERGE statement, so
// either every row lands or none does. Rows whose id already exists are
// left alone.
func CommitTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, txs []domain.Transaction) ([]string, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(txs))
	params := make([]transactionParam, len(txs))
	for i, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		ids[i] = tx.ID
		params[i] = toParam(tx)
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING UNNEST(@rows) S
		ON T.transaction_id = S.transaction_id
		WHEN NOT MATCHED THEN %s
	`, ds.Table(transactionsTable), insertValues))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: params},
	}

	if _, err := runDML(ctx, q); err != nil {
		return nil, fmt.Errorf("CommitTransactions: %w", err)
	}
	return ids, nil
}

// UpdateCategoryWithClient sets the item of a transaction and assigns the
// context when the row has none.
func UpdateCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, txID, category, contextID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET item = @item,
		    context_id = COALESCE(context_id, NULLIF(@context_id, '')),
		    updated_ts = @updated_ts
		WHERE transaction_id = @transaction_id
		  AND user_id = @user_id
	`, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "item", Value: category},
		{Name: "context_id", Value: contextID},
		{Name: "updated_ts", Value: time.Now().UTC()},
		{Name: "transaction_id", Value: txID},
		{Name: "user_id", Value: userID},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateCategory: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("UpdateCategory: transaction %s: %w", txID, domain.ErrNotFound)
	}
	return nil
}

// FindTransactionByMessageWithClient returns the row staged for a source
// message, or ErrNotFound.
func FindTransactionByMessageWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, source, messageID string) (*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND source = @source
		  AND message_id = @message_id
		ORDER BY created_ts
		LIMIT 1
	`, transactionColumns, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "source", Value: source},
		{Name: "message_id", Value: messageID},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindTransactionByMessage: %w", err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("FindTransactionByMessage: %s: %w", messageID, domain.ErrNotFound)
	}
	return txs[0], nil
}

// QueryByContextAndDateWithClient lists a context's rows dated within [from, to].
func QueryByContextAndDateWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, contextID string, from, to civil.Date) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND context_id = @context_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, created_ts
	`, transactionColumns, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "context_id", Value: contextID},
		{Name: "start_date", Value: from},
		{Name: "end_date", Value: to},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("QueryByContextAndDate: %w", err)
	}
	return txs, nil
}

// ListPendingWithClient lists staged rows without an item that are
// unassigned or belong to contextID.
func ListPendingWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, contextID string) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND staged = TRUE
		  AND (item IS NULL OR item = '')
		  AND (context_id IS NULL OR context_id = @context_id)
		ORDER BY transaction_date, created_ts
	`, transactionColumns, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "context_id", Value: contextID},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	return txs, nil
}

// QueryByUserAndDateWithClient lists every row of a user on one date.
func QueryByUserAndDateWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, date civil.Date) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND transaction_date = @date
		ORDER BY created_ts
	`, transactionColumns, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "date", Value: date},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("QueryByUserAndDate: %w", err)
	}
	return txs, nil
}

func readTransactions(ctx context.Context, q *bigquery.Query) ([]*domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []*domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		tx, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
