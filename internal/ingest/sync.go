package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/extract"
	"github.com/subhatanay/expenseapp/internal/logger"
	"github.com/subhatanay/expenseapp/internal/metrics"
)

// ErrSyncInProgress is returned when a sync for the same user is already running.
var ErrSyncInProgress = errors.New("sync already in progress for user")

const (
	defaultFetchTimeout = 30 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

// Source is one configured message source of a user with its templates in
// priority order.
type Source struct {
	Name     string
	Patterns []*extract.Pattern
}

// Result summarizes one sync pass.
type Result struct {
	Staged     int `json:"staged"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Debits     int `json:"debits"`
	Credits    int `json:"credits"`
}

func (r *Result) add(o Result) {
	r.Staged += o.Staged
	r.Skipped += o.Skipped
	r.Duplicates += o.Duplicates
	r.Debits += o.Debits
	r.Credits += o.Credits
}

// Options tunes a Syncer. Zero values take defaults.
type Options struct {
	FetchTimeout time.Duration
	WriteTimeout time.Duration
	PageSize     int
}

// Syncer pulls new notification messages for a user, extracts transactions,
// stages them and advances the per-source cursor.
type Syncer struct {
	source    domain.MessageSource
	ledger    domain.Ledger
	cursors   domain.CursorStore
	notifier  domain.Notifier
	extractor *extract.Extractor
	opts      Options

	mu       sync.Mutex
	sources  map[string][]Source
	inFlight map[string]bool
}

// NewSyncer creates a Syncer. notifier may be nil.
func NewSyncer(source domain.MessageSource, ledger domain.Ledger, cursors domain.CursorStore, notifier domain.Notifier, extractor *extract.Extractor, opts Options) *Syncer {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PageSize <= 0 || opts.PageSize > PageSize {
		opts.PageSize = PageSize
	}
	return &Syncer{
		source:    source,
		ledger:    ledger,
		cursors:   cursors,
		notifier:  notifier,
		extractor: extractor,
		opts:      opts,
		sources:   make(map[string][]Source),
		inFlight:  make(map[string]bool),
	}
}

// Register adds a source for a user. Sources without templates are kept but
// never queried.
func (s *Syncer) Register(userID string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[userID] = append(s.sources[userID], src)
}

// Users returns every user with at least one registered source.
func (s *Syncer) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.sources))
	for u := range s.sources {
		users = append(users, u)
	}
	return users
}

func (s *Syncer) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *Syncer) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

func (s *Syncer) userSources(userID string) []Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Source(nil), s.sources[userID]...)
}

// Sync runs one pass over every source of the user. A fault aborts the pass;
// rows staged before it stay staged and the cursor stays at the last one.
func (s *Syncer) Sync(ctx context.Context, userID string) (Result, error) {
	if !s.acquire(userID) {
		metrics.SyncRuns.WithLabelValues("busy").Inc()
		return Result{}, ErrSyncInProgress
	}
	defer s.release(userID)

	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	ctx = logger.WithUser(ctx, userID)
	log := logger.FromContext(ctx)

	var total Result
	var syncErr error
	for _, src := range s.userSources(userID) {
		if len(src.Patterns) == 0 {
			continue
		}
		res, err := s.syncSource(ctx, log, userID, src)
		total.add(res)
		if err != nil {
			syncErr = fmt.Errorf("Sync: source %s: %w", src.Name, err)
			break
		}
	}

	if total.Debits+total.Credits > 0 {
		s.notify(ctx, log, userID, total)
	}

	if syncErr != nil {
		metrics.SyncRuns.WithLabelValues("failed").Inc()
		log.Error().Err(syncErr).Int("staged", total.Staged).Msg("Sync pass aborted")
		return total, syncErr
	}

	metrics.SyncRuns.WithLabelValues("ok").Inc()
	log.Info().
		Int("staged", total.Staged).
		Int("skipped", total.Skipped).
		Int("duplicates", total.Duplicates).
		Msg("Sync pass completed")
	return total, nil
}

func (s *Syncer) syncSource(ctx context.Context, log zerolog.Logger, userID string, src Source) (Result, error) {
	var res Result
	log = log.With().Str("source", src.Name).Logger()

	cur, err := s.getCursor(ctx, userID, src.Name)
	if err != nil {
		return res, err
	}
	cursor := domain.Cursor{UserID: userID, Source: src.Name}
	if cur != nil {
		cursor = *cur
	}

	query := BuildQuery(extract.Senders(src.Patterns), cur)
	ids, err := s.list(ctx, userID, query)
	if err != nil {
		return res, err
	}

	fresh := unseen(ids, cur)
	log.Debug().Str("query", query).Int("listed", len(ids)).Int("unseen", len(fresh)).Msg("Fetched message ids")

	// Oldest first, so the cursor only ever moves forward.
	for i := len(fresh) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		msg, err := s.get(ctx, userID, fresh[i])
		if err != nil {
			return res, err
		}
		mlog := log.With().Str("message_id", msg.ID).Logger()

		r, err := s.extractor.Extract(msg.Body, src.Patterns)
		if errors.Is(err, extract.ErrNotMatched) {
			res.Skipped++
			metrics.MessagesProcessed.WithLabelValues("unmatched").Inc()
			mlog.Info().Msg("Message matched no template")
			continue
		}
		if err != nil {
			return res, err
		}
		if r.DateFallback {
			metrics.DateFallbacks.WithLabelValues(r.TemplateType).Inc()
			mlog.Warn().
				Str("template", r.TemplateType).
				Str("raw_date", r.RawDate).
				Str("used_date", r.Transaction.Date.String()).
				Msg("Date did not parse, using processing date")
		}

		tx := r.Transaction
		tx.UserID = userID
		tx.Source = src.Name
		tx.MessageID = msg.ID
		tx.Staged = true

		id, created, err := s.stage(ctx, tx)
		if err != nil {
			return res, err
		}
		if created {
			res.Staged++
			if tx.Action == domain.ActionCredit {
				res.Credits++
			} else {
				res.Debits++
			}
			metrics.MessagesProcessed.WithLabelValues("staged").Inc()
			mlog.Info().Str("transaction_id", id).Str("template", r.TemplateType).Msg("Staged transaction")
		} else {
			res.Duplicates++
			metrics.MessagesProcessed.WithLabelValues("duplicate").Inc()
			mlog.Debug().Str("transaction_id", id).Msg("Message already staged")
		}

		next := cursor.Advance(*msg)
		if err := s.putCursor(ctx, next); err != nil {
			return res, err
		}
		cursor = next
	}

	return res, nil
}

func (s *Syncer) getCursor(ctx context.Context, userID, source string) (*domain.Cursor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	cur, err := s.cursors.GetCursor(ctx, userID, source)
	if err != nil {
		return nil, fmt.Errorf("reading cursor: %w", err)
	}
	return cur, nil
}

func (s *Syncer) putCursor(ctx context.Context, c domain.Cursor) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	if err := s.cursors.PutCursor(ctx, c); err != nil {
		return fmt.Errorf("advancing cursor: %w", err)
	}
	return nil
}

func (s *Syncer) list(ctx context.Context, userID, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	ids, err := s.source.List(ctx, userID, query, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return ids, nil
}

func (s *Syncer) get(ctx context.Context, userID, id string) (*domain.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	msg, err := s.source.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}
	return msg, nil
}

func (s *Syncer) stage(ctx context.Context, tx domain.Transaction) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	id, created, err := s.ledger.Stage(ctx, tx)
	if err != nil {
		return "", false, fmt.Errorf("staging message %s: %w", tx.MessageID, err)
	}
	return id, created, nil
}

// notify sends the single aggregate notification of a pass. Delivery
// failures are logged only.
func (s *Syncer) notify(ctx context.Context, log zerolog.Logger, userID string, res Result) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, userID, SummaryText(res)); err != nil {
		log.Warn().Err(err).Msg("Failed to send sync notification")
	}
}

// SummaryText is the aggregate notification for a pass.
func SummaryText(res Result) string {
	return fmt.Sprintf("🧾 New transactions: %d debit(s), %d credit(s). Send 'show pending' to tag them.",
		res.Debits, res.Credits)
}

// SyncAll syncs the given users concurrently, at most limit at a time.
// A failing user does not stop the others; per-user errors are returned
// keyed by user.
func (s *Syncer) SyncAll(ctx context.Context, users []string, limit int) (map[string]Result, map[string]error) {
	results := make(map[string]Result)
	errs := make(map[string]error)
	var mu sync.Mutex

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, u := range users {
		userID := u
		g.Go(func() error {
			res, err := s.Sync(ctx, userID)
			mu.Lock()
			defer mu.Unlock()
			results[userID] = res
			if err != nil {
				errs[userID] = err
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}
