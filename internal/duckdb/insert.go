package duckdb

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// InsertBatch appends the events of batch in a single transaction tagged
// with batchID. Either every event is stored or none is.
func (s *Store) InsertBatch(ctx context.Context, batchID string, batch model.LogBatch) error {
	if len(batch.Events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO log_events (log_group, log_stream, timestamp, message, batch_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range batch.Events {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, batch.Group, batch.Stream, ts.UTC(), e.Message, batchID); err != nil {
			return fmt.Errorf("event insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
