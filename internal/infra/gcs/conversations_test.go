package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/subhatanay/expenseapp/internal/domain"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "conversations/alice.json", ObjectName("alice"))
}

func TestStateEncoding(t *testing.T) {
	ctxID := "ctx-1"
	state := &domain.ConversationState{
		UserID:           "alice",
		CurrentContextID: &ctxID,
		CurrentContext:   "lunch",
		PendingAdd:       true,
		BatchID:          "batch-1",
		Buffer: []domain.Entry{
			{Item: "tea", Amount: decimal.RequireFromString("10.00")},
		},
		PendingTags: map[int]string{1: "tx-1", 2: "tx-2"},
		TagEpoch:    "boot-1",
		Version:     7,
	}

	data, err := encodeState(state)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Version")

	got, err := decodeState("alice", data)
	require.NoError(t, err)

	assert.Equal(t, int64(0), got.Version, "version comes from the object generation")
	assert.Equal(t, "ctx-1", *got.CurrentContextID)
	assert.Equal(t, "lunch", got.CurrentContext)
	assert.True(t, got.PendingAdd)
	require.Len(t, got.Buffer, 1)
	assert.True(t, got.Buffer[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, map[int]string{1: "tx-1", 2: "tx-2"}, got.PendingTags)
}

func TestDecodeStateRejectsGarbage(t *testing.T) {
	_, err := decodeState("alice", []byte("{not json"))
	assert.Error(t, err)
}

func TestPreconditions(t *testing.T) {
	assert.Equal(t, storage.Conditions{DoesNotExist: true}, preconditions(0))
	assert.Equal(t, storage.Conditions{GenerationMatch: 42}, preconditions(42))
}

func TestMapPrecondition(t *testing.T) {
	conflict := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})
	assert.ErrorIs(t, mapPrecondition(conflict), domain.ErrVersionConflict)

	other := &googleapi.Error{Code: http.StatusForbidden}
	assert.False(t, errors.Is(mapPrecondition(other), domain.ErrVersionConflict))
}
