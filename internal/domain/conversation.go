package domain

import (
	"github.com/shopspring/decimal"
)

// Entry is one buffered (item, amount) pair of a multi-line add session.
type Entry struct {
	Item   string          `json:"item"`
	Amount decimal.Decimal `json:"amount"`
}

// ConversationState is everything that survives between two chat turns for
// a user. It is loaded, mutated and stored on every turn.
type ConversationState struct {
	UserID           string  `json:"user_id"`
	CurrentContextID *string `json:"current_context_id,omitempty"`
	CurrentContext   string  `json:"current_context,omitempty"` // display name of CurrentContextID

	// Multi-line add session.
	PendingAdd bool    `json:"pending_add"`
	BatchID    string  `json:"batch_id,omitempty"`
	Buffer     []Entry `json:"buffer,omitempty"`

	// Ordinal -> transaction id from the latest "show pending" listing.
	// TagEpoch identifies the engine instance that produced the listing.
	PendingTags map[int]string `json:"pending_tags,omitempty"`
	TagEpoch    string         `json:"tag_epoch,omitempty"`

	// Version is the store's concurrency token; zero means never stored.
	Version int64 `json:"-"`
}

// NewConversationState returns the idle state for a user seen for the first time.
func NewConversationState(userID string) *ConversationState {
	return &ConversationState{UserID: userID}
}

// EndBatch leaves the multi-line add session and drops its buffer.
func (s *ConversationState) EndBatch() {
	s.PendingAdd = false
	s.BatchID = ""
	s.Buffer = nil
}

// Clone returns a deep copy so a turn can mutate state without touching
// the loaded value until it is stored.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	if s.CurrentContextID != nil {
		id := *s.CurrentContextID
		c.CurrentContextID = &id
	}
	if s.Buffer != nil {
		c.Buffer = append([]Entry(nil), s.Buffer...)
	}
	if s.PendingTags != nil {
		c.PendingTags = make(map[int]string, len(s.PendingTags))
		for k, v := range s.PendingTags {
			c.PendingTags[k] = v
		}
	}
	return &c
}
