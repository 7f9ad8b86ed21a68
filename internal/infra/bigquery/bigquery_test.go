package bigquery

import (
	"math/big"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhatanay/expenseapp/internal/domain"
)

var testDataset = Dataset{ProjectID: "proj", DatasetID: "expenses"}

func TestDatasetTable(t *testing.T) {
	assert.Equal(t, "`proj.expenses.transactions`", testDataset.Table(transactionsTable))
}

func TestTransactionRowConversion(t *testing.T) {
	ctxID := "ctx-1"
	tx := domain.Transaction{
		ID:           "tx-1",
		UserID:       "alice",
		ContextID:    &ctxID,
		Source:       "hdfc",
		MessageID:    "m1",
		Date:         civil.Date{Year: 2024, Month: time.June, Day: 1},
		Action:       domain.ActionDebit,
		Amount:       decimal.RequireFromString("1200.50"),
		Merchant:     "SHOP",
		Reference:    domain.StringPtr("987654"),
		Account:      domain.StringPtr("1234"),
		TemplateType: "UPI",
		Staged:       true,
		CreatedAt:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	row := ToRow(tx)
	assert.Equal(t, bigquery.NullString{StringVal: "ctx-1", Valid: true}, row.ContextID)
	assert.False(t, row.VPA.Valid)
	assert.False(t, row.Item.Valid)
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(2401, 2)))

	back, err := row.ToDomain()
	require.NoError(t, err)
	assert.True(t, back.Amount.Equal(tx.Amount))
	assert.Equal(t, tx.Date, back.Date)
	assert.Equal(t, "987654", *back.Reference)
	assert.Nil(t, back.VPA)
	assert.Nil(t, back.Item)
	assert.Equal(t, "ctx-1", *back.ContextID)
}

func TestToParamFlattensOptionalFields(t *testing.T) {
	p := toParam(domain.Transaction{ID: "tx", Amount: decimal.NewFromInt(5)})
	assert.Equal(t, "", p.ContextID)
	assert.Equal(t, "", p.Reference)
	assert.False(t, p.CreatedTS.IsZero())
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"001_invalid.sql": {Data: []byte("x")},
		"0003_noext":      {Data: []byte("x")},
		"README.md":       {Data: []byte("docs")},
	}

	migrations, err := ReadMigrations(fsys, testDataset)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.expenses.a` (id INT64);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)

	again, err := ReadMigrations(fsys, Dataset{ProjectID: "other", DatasetID: "ds"})
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, again[0].Checksum)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testDataset)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotContains(t, m.SQL, "{{")
	}
	assert.Contains(t, migrations[0].SQL, "`proj.expenses.transactions`")
}
