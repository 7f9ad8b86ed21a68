package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/logger"
	"github.com/subhatanay/expenseapp/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultTimeout     = 15 * time.Second
)

// Engine interprets one chat line per turn against the user's persisted
// conversation state and always produces exactly one reply.
type Engine struct {
	ledger   domain.Ledger
	contexts domain.ContextRepository
	store    domain.ConversationStore

	now         func() time.Time
	epoch       string
	maxAttempts int
	timeout     time.Duration

	locks sync.Map // user id -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEpoch overrides the boot id that stamps pending-tag listings.
func WithEpoch(epoch string) Option {
	return func(e *Engine) { e.epoch = epoch }
}

// WithMaxAttempts bounds how often a turn is replayed after a version conflict.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithTimeout bounds each attempt of a turn, covering the state and ledger
// calls it makes.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates an Engine. Each Engine gets a fresh epoch, so pending-tag
// listings made before a restart are not honoured after it.
func NewEngine(ledger domain.Ledger, contexts domain.ContextRepository, store domain.ConversationStore, opts ...Option) *Engine {
	e := &Engine{
		ledger:      ledger,
		contexts:    contexts,
		store:       store,
		now:         time.Now,
		epoch:       uuid.NewString(),
		maxAttempts: defaultMaxAttempts,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Epoch returns the boot id of this engine.
func (e *Engine) Epoch() string {
	return e.epoch
}

func (e *Engine) lock(userID string) func() {
	v, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Handle runs one turn for userID. Faults below the engine are logged and
// answered with a generic failure line.
func (e *Engine) Handle(ctx context.Context, userID, text string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return replyMissingUser
	}

	ctx = logger.WithUser(ctx, userID)
	log := logger.FromContext(ctx)

	unlock := e.lock(userID)
	defer unlock()

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		reply, err := e.turn(attemptCtx, userID, text)
		cancel()
		if err == nil {
			return reply
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			log.Warn().Int("attempt", attempt).Msg("Conversation state changed concurrently, replaying turn")
			continue
		}
		metrics.DialogFailures.Inc()
		log.Error().Err(err).Str("text", text).Msg("Turn failed")
		return replyFailure
	}

	metrics.DialogFailures.Inc()
	log.Error().Int("attempts", e.maxAttempts).Msg("Turn kept conflicting, giving up")
	return replyFailure
}

// turn loads state, dispatches the command and stores the state when the
// command changed it.
func (e *Engine) turn(ctx context.Context, userID, text string) (string, error) {
	loaded, err := e.store.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("turn: loading state: %w", err)
	}
	loaded.UserID = userID

	t := newTurn(userID, text, loaded.Clone())
	cmd := match(t)
	metrics.CommandsProcessed.WithLabelValues(cmd.name).Inc()

	reply, err := cmd.run(e, ctx, t)
	if err != nil {
		return "", fmt.Errorf("turn: %s: %w", cmd.name, err)
	}
	if !t.dirty {
		return reply, nil
	}
	if err := e.store.Put(ctx, t.state); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return "", err
		}
		return "", fmt.Errorf("turn: storing state: %w", err)
	}
	return reply, nil
}

func (e *Engine) today() civil.Date {
	return domain.Today(e.now())
}
