// Package flushtimer drives periodic flushes of a forwarding node.
package flushtimer

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = model.DefaultPublishFrequency

// Trigger calls TriggerFlush on every tick until its context ends.
type Trigger struct {
	interval time.Duration
	target   model.Flusher
	logger   *slog.Logger
}

// New creates a Trigger flushing target every interval.
func New(interval time.Duration, target model.Flusher, logger *slog.Logger) *Trigger {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		interval: interval,
		target:   target,
		logger:   logger.With("component", "flushtimer"),
	}
}

// Interval returns the tick period.
func (t *Trigger) Interval() time.Duration { return t.interval }

// Run blocks until ctx is cancelled. It always returns nil so it can run
// inside an errgroup without cancelling its siblings.
func (t *Trigger) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Debug("flush trigger running", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !t.target.TriggerFlush() {
				t.logger.Debug("scheduled flush not accepted")
			}
		}
	}
}
