// Package app wires configuration into the stores, the syncer and the
// dialog engine shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"

	"github.com/subhatanay/expenseapp/internal/config"
	"github.com/subhatanay/expenseapp/internal/dialog"
	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/extract"
	"github.com/subhatanay/expenseapp/internal/gmail"
	infraBQ "github.com/subhatanay/expenseapp/internal/infra/bigquery"
	infraGCS "github.com/subhatanay/expenseapp/internal/infra/gcs"
	"github.com/subhatanay/expenseapp/internal/infra/inmemory"
	"github.com/subhatanay/expenseapp/internal/ingest"
	"github.com/subhatanay/expenseapp/internal/notify"
)

// Store bundles the ledger-side capabilities of one backend.
type Store interface {
	domain.Ledger
	domain.ContextRepository
	domain.CursorStore
}

// App holds the wired components.
type App struct {
	Config        *config.Config
	Store         Store
	Conversations domain.ConversationStore
	Registry      *extract.Registry
	Source        domain.MessageSource
	Notifier      domain.Notifier
	Syncer        *ingest.Syncer
	Engine        *dialog.Engine
	Repository    *infraBQ.Repository // nil for in-memory runs

	closers []func() error
}

// Options adjust the wiring.
type Options struct {
	// Source replaces the Gmail message source.
	Source domain.MessageSource
	// Telegram is used to send notifications when set; otherwise a sender
	// is created from the configured token.
	Telegram notify.Sender
}

// New builds the application from cfg. An empty GCP project selects the
// in-memory stores; a project without a bucket keeps conversations in
// memory.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg}

	if cfg.GCP.ProjectID == "" {
		log.Warn().Msg("No GCP project configured - using in-memory stores")
		a.Store = inmemory.NewLedger()
		a.Conversations = inmemory.NewConversationStore()
	} else {
		repo, err := infraBQ.NewRepository(ctx, cfg.GCP.ProjectID, cfg.GCP.Dataset)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.Repository = repo
		a.Store = repo

		if cfg.GCP.Bucket == "" {
			log.Warn().Msg("No GCS bucket configured - conversation state is kept in memory")
			a.Conversations = inmemory.NewConversationStore()
		} else {
			conv, err := infraGCS.NewConversationStore(ctx, cfg.GCP.Bucket)
			if err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("New: %w", err)
			}
			a.closers = append(a.closers, conv.Close)
			a.Conversations = conv
		}
	}

	reg, err := cfg.Registry()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Registry = reg

	a.Source = opts.Source
	if a.Source == nil {
		a.Source = gmail.NewSource(cfg.GmailCredentials())
	}

	notifiers := notify.Multi{notify.Log{}}
	sender := opts.Telegram
	if sender == nil && cfg.Telegram.Token != "" {
		api, err := bot.New(cfg.Telegram.Token, bot.WithSkipGetMe())
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("New: creating telegram client: %w", err)
		}
		sender = api
	}
	if sender != nil {
		notifiers = append(notifiers, notify.NewTelegram(sender, cfg.ChatIDs()))
	}
	a.Notifier = notifiers

	a.Syncer = ingest.NewSyncer(a.Source, a.Store, a.Store, a.Notifier, extract.NewExtractor(), cfg.SyncOptions())
	if err := cfg.RegisterSources(a.Syncer, reg); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	a.Engine = dialog.NewEngine(a.Store, a.Store, a.Conversations, dialog.WithTimeout(cfg.Sync.WriteTimeout))
	log.Info().Str("epoch", a.Engine.Epoch()).Int("users", len(a.Syncer.Users())).Msg("Application wired")

	return a, nil
}

// Close releases the backend clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
