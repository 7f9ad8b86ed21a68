package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhatanay/expenseapp/internal/domain"
)

func TestLedger_StageIsIdempotentPerMessage(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	tx := domain.Transaction{UserID: "u1", Source: "hdfc", MessageID: "m1", Amount: decimal.RequireFromString("10.00")}
	id1, created, err := l.Stage(ctx, tx)
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := l.Stage(ctx, tx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	other := tx
	other.UserID = "u2"
	_, created, err = l.Stage(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Len(t, l.Transactions(), 2)
}

func TestLedger_CommitBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.SetWriteHook(func(i int, tx domain.Transaction) error {
		if i == 1 {
			return errors.New("disk full")
		}
		return nil
	})

	batch := []domain.Transaction{
		{UserID: "u1", Amount: decimal.NewFromInt(1)},
		{UserID: "u1", Amount: decimal.NewFromInt(2)},
		{UserID: "u1", Amount: decimal.NewFromInt(3)},
	}
	_, err := l.CommitBatch(ctx, batch)
	require.Error(t, err)
	assert.Empty(t, l.Transactions())

	l.SetWriteHook(nil)
	ids, err := l.CommitBatch(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Len(t, l.Transactions(), 3)
}

func TestLedger_CommitBatchSkipsKnownIDs(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	batch := []domain.Transaction{{ID: "a", UserID: "u1"}, {ID: "b", UserID: "u1"}}
	_, err := l.CommitBatch(ctx, batch)
	require.NoError(t, err)
	_, err = l.CommitBatch(ctx, batch)
	require.NoError(t, err)

	assert.Len(t, l.Transactions(), 2)
}

func TestLedger_PendingAndTagging(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	lunch := "ctx-lunch"
	other := "ctx-other"
	day := civil.Date{Year: 2024, Month: time.June, Day: 1}

	unassigned, _, _ := l.Stage(ctx, domain.Transaction{UserID: "u1", Source: "s", MessageID: "1", Date: day})
	_, _, _ = l.Stage(ctx, domain.Transaction{UserID: "u1", Source: "s", MessageID: "2", Date: day, ContextID: &other})
	_, _ = l.Commit(ctx, domain.Transaction{UserID: "u1", Date: day, ContextID: &lunch})

	pending, err := l.ListPending(ctx, "u1", lunch)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, unassigned, pending[0].ID)

	require.NoError(t, l.UpdateCategory(ctx, "u1", unassigned, "groceries", lunch))
	pending, err = l.ListPending(ctx, "u1", lunch)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rows, err := l.QueryByContextAndDate(ctx, "u1", lunch, day, day)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	err = l.UpdateCategory(ctx, "u2", unassigned, "x", lunch)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_Contexts(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	_, err := l.CreateContext(ctx, "u1", "lunch")
	require.NoError(t, err)
	_, err = l.CreateContext(ctx, "u1", "Lunch")
	assert.ErrorIs(t, err, domain.ErrContextExists)
	_, err = l.CreateContext(ctx, "u2", "lunch")
	require.NoError(t, err)

	list, err := l.ListContexts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = l.FindContext(ctx, "u1", "dinner")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationStore_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	a, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	b, err := s.Get(ctx, "u1")
	require.NoError(t, err)

	a.PendingAdd = true
	require.NoError(t, s.Put(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.PendingAdd = false
	assert.ErrorIs(t, s.Put(ctx, b), domain.ErrVersionConflict)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.PendingAdd)
}

func TestCursorStore_WatermarkNeverDecreases(t *testing.T) {
	ctx := context.Background()
	s := NewCursorStore()
	t1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutCursor(ctx, domain.Cursor{UserID: "u1", Source: "s", LastMessageID: "new", Watermark: t1}))
	require.NoError(t, s.PutCursor(ctx, domain.Cursor{UserID: "u1", Source: "s", LastMessageID: "old", Watermark: t1.Add(-time.Hour)}))

	c, err := s.GetCursor(ctx, "u1", "s")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "new", c.LastMessageID)

	missing, err := s.GetCursor(ctx, "u1", "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
