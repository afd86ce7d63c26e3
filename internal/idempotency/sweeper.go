package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired records are deleted.
const DefaultSweepInterval = time.Hour

// Sweeper periodically deletes expired idempotency records. It runs out of
// band so a slow sweep never sits on the request path.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper over the given store. A non-positive interval
// falls back to DefaultSweepInterval.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on a fixed interval until the context is cancelled. Sweep errors
// are logged and the loop continues; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("idempotency sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(ctx)
			if err != nil {
				s.logger.Error("idempotency sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("idempotency sweep completed", "removed", removed)
			}
		}
	}
}
