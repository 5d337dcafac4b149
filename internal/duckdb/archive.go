package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// ArchiveConfig configures the archive backend.
type ArchiveConfig struct {
	Path          string // empty = in-memory
	RetentionDays int    // 0 = keep forever
	QueryTimeout  time.Duration
}

// Archive is a model.BatchPublisher storing batches in DuckDB.
type Archive struct {
	store   *Store
	cleaner *RetentionCleaner
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenArchive opens the store at cfg.Path and starts retention when enabled.
func OpenArchive(cfg ArchiveConfig, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := NewStore(cfg.Path, cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open archive: %w", err)
	}
	return &Archive{
		store:   store,
		cleaner: NewRetentionCleaner(store, RetentionConfig{RetentionDays: cfg.RetentionDays}, logger),
		logger:  logger.With("component", "duckdb"),
	}, nil
}

// Store exposes the underlying store for queries.
func (a *Archive) Store() *Store { return a.store }

// Publish stores batch under a fresh batch ID.
func (a *Archive) Publish(ctx context.Context, batch model.LogBatch) error {
	if err := a.store.InsertBatch(ctx, uuid.NewString(), batch); err != nil {
		return fmt.Errorf("duckdb: publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the database answers a ping.
func (a *Archive) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return a.store.Ping(ctx) == nil
}

// Close stops retention and closes the database. Safe to call twice.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		if a.cleaner != nil {
			a.cleaner.Stop()
		}
		a.closeErr = a.store.Close()
	})
	return a.closeErr
}
