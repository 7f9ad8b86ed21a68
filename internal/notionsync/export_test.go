package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/infra/inmemory"
)

type mockDatabase struct {
	pages      []notionapi.Page
	created    []notionapi.Properties
	updated    map[string]notionapi.Properties
	archived   []string
	InsertFunc func(props notionapi.Properties) error
}

func (m *mockDatabase) Rows(_ context.Context, _ string) ([]notionapi.Page, error) {
	return m.pages, nil
}

func (m *mockDatabase) Insert(_ context.Context, _ string, props notionapi.Properties) (string, error) {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(props); err != nil {
			return "", err
		}
	}
	m.created = append(m.created, props)
	return "new-page", nil
}

func (m *mockDatabase) Patch(_ context.Context, pageID string, props notionapi.Properties) error {
	if m.updated == nil {
		m.updated = make(map[string]notionapi.Properties)
	}
	m.updated[pageID] = props
	return nil
}

func (m *mockDatabase) Archive(_ context.Context, pageID string) error {
	m.archived = append(m.archived, pageID)
	return nil
}

func page(id, txID, contextName, item string, date civil.Date) notionapi.Page {
	start := notionapi.Date(date.In(time.UTC))
	props := notionapi.Properties{
		propTransactionID: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: txID}}},
		propContext:       &notionapi.SelectProperty{Select: notionapi.Option{Name: contextName}},
		propDate:          &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}},
	}
	if item != "" {
		props[propItem] = &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: item}}}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

var june1 = civil.Date{Year: 2024, Month: time.June, Day: 1}

func seed(t *testing.T) *inmemory.Ledger {
	t.Helper()
	ctx := context.Background()
	ledger := inmemory.NewLedger()
	lc, err := ledger.CreateContext(ctx, "alice", "goa")
	require.NoError(t, err)

	for i, item := range []string{"lunch", "taxi", ""} {
		tx := domain.Transaction{
			ID:        []string{"t1", "t2", "t3"}[i],
			UserID:    "alice",
			ContextID: &lc.ID,
			Date:      june1,
			Action:    domain.ActionDebit,
			Amount:    decimal.NewFromInt(int64(100 * (i + 1))),
			Merchant:  "SHOP",
			Item:      domain.StringPtr(item),
		}
		_, err := ledger.Commit(ctx, tx)
		require.NoError(t, err)
	}
	return ledger
}

func TestExportContext(t *testing.T) {
	ledger := seed(t)
	// p1 is unchanged, p2 has a stale item, p9 is gone from the ledger,
	// p8 lies outside the window and p7 belongs to another context.
	notion := &mockDatabase{pages: []notionapi.Page{
		page("p1", "t1", "goa", "lunch", june1),
		page("p2", "t2", "goa", "snacks", june1),
		page("p9", "gone", "goa", "x", june1),
		page("p8", "old", "goa", "x", june1.AddDays(-40)),
		page("p7", "t9", "kerala", "x", june1),
	}}

	res, err := ExportContext(context.Background(), ledger, ledger, notion, ExportRequest{
		UserID: "alice", Context: "goa", From: june1, To: june1, DatabaseID: "db",
	})
	require.NoError(t, err)

	assert.Equal(t, ExportResult{Created: 1, Updated: 1, Unchanged: 1, Archived: 1}, res)
	require.Len(t, notion.created, 1)
	assert.Equal(t, selectOption(statusPending), notion.created[0][propStatus])
	require.Contains(t, notion.updated, "p2")
	assert.Equal(t, richText("taxi"), notion.updated["p2"][propItem])
	assert.Equal(t, []string{"p9"}, notion.archived)
}

func TestExportContext_DryRun(t *testing.T) {
	ledger := seed(t)
	notion := &mockDatabase{pages: []notionapi.Page{page("p9", "gone", "goa", "", june1)}}

	res, err := ExportContext(context.Background(), ledger, ledger, notion, ExportRequest{
		UserID: "alice", Context: "GOA", From: june1, To: june1, DatabaseID: "db", DryRun: true,
	})
	require.NoError(t, err)
	assert.Equal(t, ExportResult{Created: 3, Archived: 1}, res)
	assert.Empty(t, notion.created)
	assert.Empty(t, notion.archived)
}

func TestExportContext_PageFailuresAreCounted(t *testing.T) {
	ledger := seed(t)
	notion := &mockDatabase{InsertFunc: func(props notionapi.Properties) error {
		if props[propTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content == "t2" {
			return errors.New("rate limited")
		}
		return nil
	}}

	res, err := ExportContext(context.Background(), ledger, ledger, notion, ExportRequest{
		UserID: "alice", Context: "goa", From: june1, To: june1, DatabaseID: "db",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
}

func TestExportContext_UnknownContext(t *testing.T) {
	ledger := inmemory.NewLedger()
	_, err := ExportContext(context.Background(), ledger, ledger, &mockDatabase{}, ExportRequest{UserID: "alice", Context: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionToProperties(t *testing.T) {
	tx := &domain.Transaction{
		ID:        "t1",
		Date:      june1,
		Action:    domain.ActionCredit,
		Amount:    decimal.RequireFromString("500.25"),
		Reference: domain.StringPtr("333444"),
		Item:      domain.StringPtr("refund"),
	}
	props := TransactionToProperties(tx, "goa")

	title := props[propMerchant].(notionapi.TitleProperty)
	assert.Equal(t, domain.UnknownMerchant, title.Title[0].Text.Content)
	assert.Equal(t, notionapi.NumberProperty{Number: 500.25}, props[propAmount])
	assert.Equal(t, selectOption("CREDIT"), props[propAction])
	assert.Equal(t, selectOption(statusTagged), props[propStatus])
	assert.Equal(t, richText("333444"), props[propReference])
	assert.Equal(t, selectOption("goa"), props[propContext])
}
