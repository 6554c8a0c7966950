package matching

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler owns the periodic trigger that drives matching sweeps.
// The engine itself guards against overlapping sweeps, so a slow sweep
// makes later ticks skip rather than pile up.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	log      *zap.Logger
}

func NewScheduler(engine *Engine, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{engine: engine, interval: interval, log: log}
}

// Run sweeps at the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("matching scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("matching scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.engine.RunSweep(ctx); err != nil {
				// Most likely the store was unavailable; the next
				// tick retries.
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
