package bidding

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically nudges due auctions through their time-based
// transitions. It exists for freshness only; every transition it drives also
// happens lazily on the next interaction with the auction.
type Sweeper struct {
	service  Service
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper over the given bidding service.
func NewSweeper(service Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.service.SweepDue(ctx); err != nil {
				s.logger.WarnContext(ctx, "auction sweep failed", "error", err)
			}
		}
	}
}
