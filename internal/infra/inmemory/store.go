package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// ConversationStore is an in-memory domain.ConversationStore with
// compare-and-set on the state version.
type ConversationStore struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{states: make(map[string]*domain.ConversationState)}
}

// Get implements domain.ConversationStore.
func (s *ConversationStore) Get(ctx context.Context, userID string) (*domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[userID]; ok {
		return st.Clone(), nil
	}
	return domain.NewConversationState(userID), nil
}

// Put implements domain.ConversationStore.
func (s *ConversationStore) Put(ctx context.Context, state *domain.ConversationState) error {
	if state.UserID == "" {
		return fmt.Errorf("Put: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if st, ok := s.states[state.UserID]; ok {
		current = st.Version
	}
	if current != state.Version {
		return domain.ErrVersionConflict
	}

	stored := state.Clone()
	stored.Version = current + 1
	s.states[state.UserID] = stored
	state.Version = stored.Version
	return nil
}

// CursorStore is an in-memory domain.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.Cursor
}

// NewCursorStore creates an empty cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[string]domain.Cursor)}
}

func cursorKey(userID, source string) string {
	return userID + "\x00" + source
}

// GetCursor implements domain.CursorStore.
func (s *CursorStore) GetCursor(ctx context.Context, userID, source string) (*domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cursors[cursorKey(userID, source)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// PutCursor implements domain.CursorStore.
func (s *CursorStore) PutCursor(ctx context.Context, c domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(c.UserID, c.Source)
	if prev, ok := s.cursors[key]; ok && c.Watermark.Before(prev.Watermark) {
		return nil
	}
	s.cursors[key] = c
	return nil
}

// Ensure the stores implement their interfaces.
var _ domain.ConversationStore = (*ConversationStore)(nil)
var _ domain.CursorStore = (*CursorStore)(nil)
