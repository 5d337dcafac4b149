package duckdb

import (
	"log/slog"
	"sync"
	"time"
)

const defaultRetentionSweep = time.Hour

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	SweepInterval time.Duration
}

// RetentionCleaner periodically deletes archived events older than the
// configured retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner creates a retention cleaner that deletes expired events.
// Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(store *Store, cfg RetentionConfig, logger *slog.Logger) *RetentionCleaner {
	if cfg.RetentionDays <= 0 {
		return nil
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultRetentionSweep
	}
	if logger == nil {
		logger = slog.Default()
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: cfg.RetentionDays,
		interval:      cfg.SweepInterval,
		logger:        logger.With("component", "duckdb"),
		done:          make(chan struct{}),
	}

	// Startup cleanup to catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	cutoff := time.Now().Add(-time.Duration(rc.retentionDays) * 24 * time.Hour)

	rows, err := rc.store.DeleteBefore(cutoff)
	if err != nil {
		rc.logger.Warn("retention cleanup failed", "error", err)
		return
	}
	if rows > 0 {
		rc.logger.Info("retention cleanup deleted expired events", "rows", rows, "retention_days", rc.retentionDays)
	}
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
