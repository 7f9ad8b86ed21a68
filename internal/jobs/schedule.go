package jobs

import (
	"context"
	"time"

	"github.com/subhatanay/expenseapp/internal/logger"
)

// Schedule publishes one sync job per user immediately and then every
// interval, until ctx is done. Publish failures are logged and the next
// tick tries again.
func Schedule(ctx context.Context, pub Publisher, users func() []string, interval time.Duration) {
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, userID := range users() {
			job := &SyncJob{UserID: userID, Trigger: TriggerSchedule}
			if err := pub.PublishSync(ctx, job); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue scheduled sync")
				continue
			}
			log.Debug().Str("job_id", job.JobID).Str("user_id", userID).Msg("Scheduled sync enqueued")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
