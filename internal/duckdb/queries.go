package duckdb

import (
	"time"
)

// ArchivedEvent is one stored line.
type ArchivedEvent struct {
	Group     string
	Stream    string
	Timestamp time.Time
	Message   string
	BatchID   string
}

// CountEvents returns the number of archived events for group/stream.
// Empty arguments match everything.
func (s *Store) CountEvents(group, stream string) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM log_events WHERE (? = '' OR log_group = ?) AND (? = '' OR log_stream = ?)`,
		group, group, stream, stream,
	).Scan(&n)
	return n, err
}

// RecentEvents returns up to limit newest events of group/stream, oldest first.
func (s *Store) RecentEvents(group, stream string, limit int) ([]ArchivedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT log_group, log_stream, timestamp, message, batch_id FROM (
			SELECT * FROM log_events
			WHERE log_group = ? AND log_stream = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`, group, stream, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedEvent
	for rows.Next() {
		var e ArchivedEvent
		if err := rows.Scan(&e.Group, &e.Stream, &e.Timestamp, &e.Message, &e.BatchID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore removes events timestamped before cutoff and returns the
// number of rows deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM log_events WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
