package reminders

import (
	"context"
	"time"

	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

// Runner drives the sweeper on a fixed interval until the context is
// cancelled. An interval wider than the sweep window leaves gaps where
// appointments are never selected, so that configuration is logged as a
// warning at startup.
type Runner struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   *logging.Logger
}

func NewRunner(sweeper *Sweeper, interval time.Duration, logger *logging.Logger) *Runner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{sweeper: sweeper, interval: interval, logger: logger}
}

// Run blocks, sweeping once immediately and then on every tick.
func (r *Runner) Run(ctx context.Context) {
	if r.interval > r.sweeper.width {
		r.logger.Warn("sweep interval exceeds the selection window, some reminders may be skipped",
			"interval", r.interval.String(),
			"window", r.sweeper.width.String(),
		)
	}
	r.logger.Info("reminder runner started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reminder runner stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	if _, err := r.sweeper.Sweep(ctx, time.Now()); err != nil {
		r.logger.Error("reminder sweep failed", "error", err)
	}
}
