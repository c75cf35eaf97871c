package service

import (
	"context"
	"log/slog"
	"time"
)

// Purger runs the periodic cleanup of long-expired credentials. It is
// storage hygiene only: rows it deletes are already rejected by the
// validator's expiry check, so it never races with request handling.
// Failures are logged and retried on the next tick, never fatal.
type Purger struct {
	lifecycle *LifecycleService
	interval  time.Duration
	grace     time.Duration
	logger    *slog.Logger
}

// NewPurger creates a Purger that deletes credentials expired for longer
// than grace, checking every interval.
func NewPurger(lifecycle *LifecycleService, interval, grace time.Duration, logger *slog.Logger) *Purger {
	return &Purger{
		lifecycle: lifecycle,
		interval:  interval,
		grace:     grace,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled, purging on every tick.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Purger) tick(ctx context.Context) {
	n, err := p.lifecycle.PurgeExpired(ctx, p.grace)
	if err != nil {
		p.logger.Error("credential purge failed", "error", err)
		return
	}
	if n > 0 {
		p.logger.Info("purged expired credentials", "count", n, "grace", p.grace.String())
	}
}
