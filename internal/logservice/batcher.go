package logservice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// warnInterval is the minimum spacing, in seconds, of repeated warnings.
const warnInterval = 10

// BatcherStats is a point-in-time view of a Batcher's counters.
type BatcherStats struct {
	Pending   int   `json:"pending"`
	Submitted int64 `json:"submitted"`
	Dropped   int64 `json:"dropped"`
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// Batcher is the default Service. Submitted lines accumulate in a bounded
// pending queue; Flush hands them to a worker goroutine which publishes them
// in batches. Submit and Flush never block on backend IO.
type Batcher struct {
	group     string
	stream    string
	publisher model.BatchPublisher
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	pending   []model.LogEvent
	running   bool
	stopped   bool
	flushChan chan []model.LogEvent
	wg        sync.WaitGroup
	inline    sync.WaitGroup

	submitted atomic.Int64
	dropped   atomic.Int64
	published atomic.Int64
	failed    atomic.Int64

	// backpressureCount tracks inline flushes for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
	lastOverflowLog   atomic.Int64
}

// NewBatcher creates a Batcher publishing group/stream batches to publisher.
// The worker is not running until Start.
func NewBatcher(group, stream string, publisher model.BatchPublisher, opts Options, logger *slog.Logger) *Batcher {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		group:     group,
		stream:    stream,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With("component", "logservice", "group", group, "stream", stream),
		now:       time.Now,
		pending:   make([]model.LogEvent, 0, min(opts.BatchMaxEntries, 1024)),
		flushChan: make(chan []model.LogEvent, opts.FlushQueueSize),
	}
}

// Submit queues one line. It returns false once the batcher has shut down.
// When the queue is full the oldest entries are dropped.
func (b *Batcher) Submit(line string) bool {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return false
	}
	b.pending = append(b.pending, model.LogEvent{Timestamp: b.now(), Message: line})
	b.submitted.Add(1)
	b.enforceCapacity()

	var batch []model.LogEvent
	if b.running && len(b.pending) >= b.opts.BatchMaxEntries {
		batch = b.takePending()
	}
	queued := b.enqueue(batch)
	b.mu.Unlock()

	if !queued {
		b.publishInline(batch)
	}
	return true
}

// Flush hands all pending lines to the flush worker. It returns false when
// the batcher is not running; pending lines are kept in that case.
func (b *Batcher) Flush() bool {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return false
	}
	batch := b.takePending()
	queued := b.enqueue(batch)
	b.mu.Unlock()

	if !queued {
		b.publishInline(batch)
	}
	return true
}

// Start launches the flush worker. It is idempotent while running and
// returns false after Shutdown.
func (b *Batcher) Start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	if b.running {
		return true
	}
	b.running = true
	b.wg.Add(1)
	go b.flushWorker()
	b.logger.Debug("batcher started")
	return true
}

// Shutdown publishes everything still pending, stops the worker and closes
// the publisher. It reports whether the final drain and close succeeded.
func (b *Batcher) Shutdown() bool {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return true
	}
	wasRunning := b.running
	b.running = false
	b.stopped = true
	remaining := b.takePending()
	close(b.flushChan)
	b.mu.Unlock()

	if wasRunning {
		b.wg.Wait()
	}
	b.inline.Wait()

	ok := b.publishAll(remaining)
	if err := b.publisher.Close(); err != nil {
		b.logger.Warn("publisher close failed", "error", err)
		ok = false
	}
	b.logger.Debug("batcher stopped", "published", b.published.Load(), "dropped", b.dropped.Load())
	return ok
}

// IsConnected reports the publisher's connectivity.
func (b *Batcher) IsConnected() bool {
	return b.publisher.IsConnected()
}

// Stats returns the current counters.
func (b *Batcher) Stats() BatcherStats {
	b.mu.Lock()
	pending := len(b.pending)
	b.mu.Unlock()
	return BatcherStats{
		Pending:   pending,
		Submitted: b.submitted.Load(),
		Dropped:   b.dropped.Load(),
		Published: b.published.Load(),
		Failed:    b.failed.Load(),
	}
}

// takePending detaches the pending queue. Must be called with b.mu held.
func (b *Batcher) takePending() []model.LogEvent {
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = make([]model.LogEvent, 0, min(b.opts.BatchMaxEntries, 1024))
	return batch
}

// enqueue performs a non-blocking send to the flush worker. It returns false
// when the queue is full and the caller must publish inline.
// Must be called with b.mu held.
func (b *Batcher) enqueue(batch []model.LogEvent) bool {
	if len(batch) == 0 {
		return true
	}
	select {
	case b.flushChan <- batch:
		return true
	default:
		b.inline.Add(1)
		return false
	}
}

// enforceCapacity drops the oldest entries beyond QueueCapacity.
// Must be called with b.mu held.
func (b *Batcher) enforceCapacity() {
	limit := b.opts.QueueCapacity
	if len(b.pending) <= limit {
		return
	}
	dropped := len(b.pending) - limit
	b.pending = append(b.pending[:0:0], b.pending[dropped:]...)
	total := b.dropped.Add(int64(dropped))
	b.warnThrottled(&b.lastOverflowLog, "queue overflow, dropping oldest entries", "dropped_total", total)
}

func (b *Batcher) publishInline(batch []model.LogEvent) {
	defer b.inline.Done()
	b.logBackpressure()
	b.publishAll(batch)
}

// logBackpressure emits a throttled warning when the flush queue is full and
// a batch is published inline.
func (b *Batcher) logBackpressure() {
	count := b.backpressureCount.Add(1)
	b.warnThrottled(&b.lastBPLog, "flush queue full, publishing inline", "inline_flushes", count)
}

// warnThrottled logs at most once per warnInterval for each last stamp.
func (b *Batcher) warnThrottled(last *atomic.Int64, msg string, args ...any) {
	now := b.now().Unix()
	prev := last.Load()
	if now-prev >= warnInterval && last.CompareAndSwap(prev, now) {
		b.logger.Warn(msg, args...)
	}
}

func (b *Batcher) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.publishAll(batch)
	}
}

// publishAll sends events in chunks bounded by BatchMaxEntries and
// BatchMaxBytes. On the first failure the unsent remainder is put back at
// the front of the queue.
func (b *Batcher) publishAll(events []model.LogEvent) bool {
	for len(events) > 0 {
		n := b.chunkLen(events)
		chunk := events[:n]

		ctx, cancel := context.WithTimeout(context.Background(), b.opts.PublishTimeout)
		err := b.publisher.Publish(ctx, model.LogBatch{Group: b.group, Stream: b.stream, Events: chunk})
		cancel()
		if err != nil {
			b.failed.Add(1)
			b.logger.Warn("publish failed", "error", err, "entries", len(events))
			b.requeue(events)
			return false
		}
		b.published.Add(int64(n))
		events = events[n:]
	}
	return true
}

func (b *Batcher) chunkLen(events []model.LogEvent) int {
	size := 0
	for i, e := range events {
		if i >= b.opts.BatchMaxEntries {
			return i
		}
		size += len(e.Message)
		if size > b.opts.BatchMaxBytes && i > 0 {
			return i
		}
	}
	return len(events)
}

func (b *Batcher) requeue(events []model.LogEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		b.dropped.Add(int64(len(events)))
		return
	}
	merged := make([]model.LogEvent, 0, len(events)+len(b.pending))
	merged = append(merged, events...)
	merged = append(merged, b.pending...)
	b.pending = merged
	b.enforceCapacity()
}
