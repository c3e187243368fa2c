// Package worker runs background jobs tied to a context.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Periodic calls fn every interval until ctx is cancelled. Errors are logged
// and do not stop the loop. A non-positive interval disables the job.
type Periodic struct {
	Name       string
	Interval   time.Duration
	Fn         func(ctx context.Context) error
	RunAtStart bool // run Fn once before the first tick
	Logger     *slog.Logger
}

// Run blocks until ctx is done.
func (p Periodic) Run(ctx context.Context) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if p.Interval <= 0 {
		logger.Info("Periodic job disabled", "job", p.Name)
		return
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	if p.RunAtStart {
		p.runOnce(ctx, logger)
	}

	logger.Info("Periodic job started", "job", p.Name, "interval", p.Interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Periodic job stopped", "job", p.Name)
			return
		case <-ticker.C:
			p.runOnce(ctx, logger)
		}
	}
}

func (p Periodic) runOnce(ctx context.Context, logger *slog.Logger) {
	start := time.Now()
	if err := p.Fn(ctx); err != nil {
		logger.Error("Periodic job failed", "job", p.Name, "error", err, "duration", time.Since(start))
		return
	}
	logger.Debug("Periodic job finished", "job", p.Name, "duration", time.Since(start))
}
