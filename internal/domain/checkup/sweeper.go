package checkup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically completes booked checkups whose window has
// passed. Start blocks until the context is cancelled, so callers run
// it in its own goroutine.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("checkup sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.svc.CompleteElapsed(ctx, time.Now())
			if err != nil {
				s.logger.Error().Err(err).Msg("completing elapsed checkups")
				continue
			}
			if n > 0 {
				s.logger.Info().Int("completed", n).Msg("elapsed checkups completed")
			}
		}
	}
}
