package model

import "context"

// BatchPublisher transmits batches to a log-aggregation backend.
type BatchPublisher interface {
	Publish(ctx context.Context, batch LogBatch) error
	IsConnected() bool
	Close() error
}

// RecordSink accepts decoded inbound records.
type RecordSink interface {
	RecordLog(record LogRecord)
}

// HealthChecker answers the synchronous health query.
type HealthChecker interface {
	CheckIfOnline() (bool, string)
}

// Flusher triggers a flush of accumulated entries. TriggerFlush reports
// whether a flush was actually accepted.
type Flusher interface {
	TriggerFlush() bool
}
