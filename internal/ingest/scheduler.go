package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs periodic ingestion passes until its context is cancelled.
type Scheduler struct {
	ingester *Ingester
	interval time.Duration
	logger   zerolog.Logger
}

func NewScheduler(ingester *Ingester, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Scheduler{
		ingester: ingester,
		interval: interval,
		logger:   logger.With().Str("component", "ingest_scheduler").Logger(),
	}
}

// Start blocks, running one pass immediately and then one per interval.
// Intended to run in its own goroutine; returns when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("ingest scheduler started")
	s.ingester.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("ingest scheduler stopped")
			return
		case <-ticker.C:
			s.ingester.RunOnce(ctx)
		}
	}
}
