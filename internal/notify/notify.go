package notify

import (
	"context"
	"errors"

	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/logger"
)

// Log writes notifications to the context logger. It is the fallback when
// no chat transport is configured.
type Log struct{}

// Notify implements domain.Notifier.
func (Log) Notify(ctx context.Context, userID, text string) error {
	log := logger.FromContext(ctx)
	log.Info().Str("user_id", userID).Str("text", text).Msg("Notification")
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []domain.Notifier

// Notify implements domain.Notifier.
func (m Multi) Notify(ctx context.Context, userID, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domain.Notifier = Log{}
	_ domain.Notifier = Multi(nil)
)
