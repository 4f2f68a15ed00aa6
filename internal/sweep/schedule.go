package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Schedule runs the sweeper once immediately and then on every tick until
// ctx is canceled. Overlapping runs are harmless: the sweep is idempotent
// and a completed sweep is a no-op, so no locking is taken.
func Schedule(ctx context.Context, sweeper *Sweeper, interval time.Duration) {
	if _, err := sweeper.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Sweep run failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweep scheduler stopped")
			return
		case <-ticker.C:
			if _, err := sweeper.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Sweep run failed")
			}
		}
	}
}
