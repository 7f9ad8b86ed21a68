package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/subhatanay/expenseapp/internal/domain"
)

const conversationsPrefix = "conversations"

// ConversationStore keeps one JSON object per user in a bucket. The object
// generation is the state version, and writes are conditioned on it.
type ConversationStore struct {
	client *storage.Client
	bucket string
}

// NewConversationStore creates a store with its own storage client.
func NewConversationStore(ctx context.Context, bucket string) (*ConversationStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewConversationStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewConversationStore: create storage client: %w", err)
	}
	return &ConversationStore{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (s *ConversationStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ObjectName returns the object path holding a user's state.
func ObjectName(userID string) string {
	return path.Join(conversationsPrefix, userID+".json")
}

// Get implements domain.ConversationStore.
func (s *ConversationStore) Get(ctx context.Context, userID string) (*domain.ConversationState, error) {
	r, err := s.client.Bucket(s.bucket).Object(ObjectName(userID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return domain.NewConversationState(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: open object for %s: %w", userID, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Get: read object for %s: %w", userID, err)
	}
	state, err := decodeState(userID, data)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	state.Version = r.Attrs.Generation
	return state, nil
}

// Put implements domain.ConversationStore.
func (s *ConversationStore) Put(ctx context.Context, state *domain.ConversationState) error {
	if state.UserID == "" {
		return fmt.Errorf("Put: user id is required")
	}
	data, err := encodeState(state)
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	obj := s.client.Bucket(s.bucket).Object(ObjectName(state.UserID)).If(preconditions(state.Version))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Put: write object for %s: %w", state.UserID, mapPrecondition(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Put: finalize object for %s: %w", state.UserID, mapPrecondition(err))
	}

	state.Version = w.Attrs().Generation
	return nil
}

// preconditions turns a state version into a write condition: version 0
// means the object must not exist yet.
func preconditions(version int64) storage.Conditions {
	if version == 0 {
		return storage.Conditions{DoesNotExist: true}
	}
	return storage.Conditions{GenerationMatch: version}
}

// mapPrecondition converts a failed precondition into ErrVersionConflict.
func mapPrecondition(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return domain.ErrVersionConflict
	}
	return err
}

func encodeState(state *domain.ConversationState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return data, nil
}

func decodeState(userID string, data []byte) (*domain.ConversationState, error) {
	state := domain.NewConversationState(userID)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decoding state for %s: %w", userID, err)
	}
	state.UserID = userID
	return state, nil
}

// Ensure ConversationStore implements domain.ConversationStore.
var _ domain.ConversationStore = (*ConversationStore)(nil)
