// Package node is the forwarding node: it admits inbound records, formats
// them and hands them to a batching log service.
package node

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/logbridge/internal/admission"
	"github.com/tinytelemetry/logbridge/internal/format"
	"github.com/tinytelemetry/logbridge/internal/logservice"
	"github.com/tinytelemetry/logbridge/internal/model"
)

// Health check messages.
const (
	MsgNotInitialized = "The LogService is not initialized"
	MsgConnected      = "The LogService is connected"
	MsgNotConnected   = "The LogService is not connected"
)

var (
	ErrNilFactory   = errors.New("node: log service factory is nil")
	ErrServiceStart = errors.New("node: log service failed to start")
)

// Stats counts what happened to inbound records.
type Stats struct {
	State                string `json:"state"`
	Received             int64  `json:"received"`
	Ignored              int64  `json:"ignored"`
	BelowThreshold       int64  `json:"below_threshold"`
	Forwarded            int64  `json:"forwarded"`
	DroppedUninitialized int64  `json:"dropped_uninitialized"`
	Rejected             int64  `json:"rejected"`
	Flushes              int64  `json:"flushes"`
}

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the runtime logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithFormatter replaces the default formatter, which echoes to stdout.
func WithFormatter(f *format.Formatter) Option {
	return func(n *Node) {
		if f != nil {
			n.formatter = f
		}
	}
}

// WithLifecycle replaces the generic lifecycle the node composes with.
func WithLifecycle(l Lifecycle) Option {
	return func(n *Node) {
		if l != nil {
			n.lifecycle = l
		}
	}
}

// Node forwards admitted records to a log service. All methods are safe for
// concurrent use; ingest, flush and health checks only take the read lock.
type Node struct {
	filter    *admission.Filter
	formatter *format.Formatter
	lifecycle Lifecycle
	logger    *slog.Logger

	mu      sync.RWMutex
	service logservice.Service
	state   State

	// lifeMu serializes Start and Shutdown without holding mu across
	// service calls that may block on backend IO.
	lifeMu sync.Mutex

	received             atomic.Int64
	ignored              atomic.Int64
	belowThreshold       atomic.Int64
	forwarded            atomic.Int64
	droppedUninitialized atomic.Int64
	rejected             atomic.Int64
	flushes              atomic.Int64
}

// New creates an uninitialized node applying cfg.
func New(cfg admission.AdmissionConfig, opts ...Option) *Node {
	n := &Node{
		filter:    admission.NewFilter(cfg),
		formatter: format.New(os.Stdout),
		lifecycle: &BaseService{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "node")
	return n
}

// Initialize builds the log service through factory and stores it.
// Calling it again replaces the stored service without shutting the old one
// down; that is left to the caller. On a factory error the previous service
// stays in place. If the node was already started, the new service is started
// here; when that fails the service is kept, the node drops back to
// initialized and ErrServiceStart is returned.
func (n *Node) Initialize(group, stream string, backend logservice.BackendConfig, opts logservice.Options, factory logservice.Factory) error {
	if factory == nil {
		return ErrNilFactory
	}
	svc, err := factory.NewLogService(group, stream, backend, opts)
	if err != nil {
		return fmt.Errorf("node: create log service: %w", err)
	}
	if svc == nil {
		return fmt.Errorf("node: create log service: factory returned no service")
	}

	n.lifeMu.Lock()
	defer n.lifeMu.Unlock()

	n.mu.Lock()
	if n.service != nil {
		n.logger.Warn("replacing existing log service", "group", group, "stream", stream)
	}
	n.service = svc
	started := n.state == StateStarted
	if n.state == StateUninitialized {
		n.state = StateInitialized
	}
	n.mu.Unlock()
	n.logger.Info("log service initialized", "group", group, "stream", stream, "backend", backend.Kind)

	if started && !svc.Start() {
		n.setState(StateInitialized)
		n.logger.Error("log service failed to start on a running node", "group", group, "stream", stream)
		return ErrServiceStart
	}
	return nil
}

func (n *Node) currentService() logservice.Service {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.service
}

// RecordLog admits, formats and submits one inbound record. Records from
// ignored sources are dropped silently, records arriving before Initialize
// are dropped with an error log.
func (n *Node) RecordLog(record model.LogRecord) {
	n.received.Add(1)
	if n.filter.IsIgnored(record.Name) {
		n.ignored.Add(1)
		return
	}
	svc := n.currentService()
	if svc == nil {
		n.droppedUninitialized.Add(1)
		n.logger.Error("cannot forward log record without a log service", "source", record.Name)
		return
	}
	if !n.filter.ShouldForward(record.Level) {
		n.belowThreshold.Add(1)
		return
	}
	if !svc.Submit(n.formatter.Format(record)) {
		n.rejected.Add(1)
		n.logger.Debug("log service rejected record", "source", record.Name)
		return
	}
	n.forwarded.Add(1)
}

// TriggerFlush asks the service to publish everything it holds. It reports
// false when there is no service or the service did not accept the flush.
func (n *Node) TriggerFlush() bool {
	svc := n.currentService()
	if svc == nil {
		n.logger.Error("cannot flush without a log service")
		return false
	}
	n.flushes.Add(1)
	if !svc.Flush() {
		n.logger.Debug("log service did not accept flush")
		return false
	}
	return true
}

// Start starts the service, if any, and then the generic lifecycle. Both are
// attempted even if the first fails.
func (n *Node) Start() bool {
	n.lifeMu.Lock()
	defer n.lifeMu.Unlock()

	ok := true
	if svc := n.currentService(); svc != nil {
		ok = svc.Start() && ok
	}
	ok = n.lifecycle.Start() && ok
	if ok {
		n.setState(StateStarted)
	}
	n.logger.Info("node start", "ok", ok)
	return ok
}

// Shutdown stops the generic lifecycle and then the service, if any. Both
// are attempted even if the first fails.
func (n *Node) Shutdown() bool {
	n.lifeMu.Lock()
	defer n.lifeMu.Unlock()

	ok := n.lifecycle.Shutdown()
	if svc := n.currentService(); svc != nil {
		ok = svc.Shutdown() && ok
	}
	n.setState(StateStopped)
	n.logger.Info("node shutdown", "ok", ok)
	return ok
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = s
}

// CheckIfOnline reports whether the service is connected to its backend,
// with a fixed human-readable message.
func (n *Node) CheckIfOnline() (bool, string) {
	svc := n.currentService()
	if svc == nil {
		return false, MsgNotInitialized
	}
	if svc.IsConnected() {
		return true, MsgConnected
	}
	return false, MsgNotConnected
}

// State returns the lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Stats returns the current counters.
func (n *Node) Stats() Stats {
	return Stats{
		State:                n.State().String(),
		Received:             n.received.Load(),
		Ignored:              n.ignored.Load(),
		BelowThreshold:       n.belowThreshold.Load(),
		Forwarded:            n.forwarded.Load(),
		DroppedUninitialized: n.droppedUninitialized.Load(),
		Rejected:             n.rejected.Load(),
		Flushes:              n.flushes.Load(),
	}
}
