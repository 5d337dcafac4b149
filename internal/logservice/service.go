// Package logservice defines the batching/transmission service the forwarding
// node submits formatted lines to, and provides the default implementation.
package logservice

import (
	"errors"
	"time"

	"github.com/tinytelemetry/logbridge/internal/httpsink"
)

// Service accumulates formatted lines and transmits them to a backend.
// Calls must return without blocking indefinitely.
type Service interface {
	Submit(line string) bool
	Flush() bool
	Start() bool
	Shutdown() bool
	IsConnected() bool
}

// Factory constructs a Service for one log group and stream.
type Factory interface {
	NewLogService(group, stream string, backend BackendConfig, opts Options) (Service, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(group, stream string, backend BackendConfig, opts Options) (Service, error)

// NewLogService calls f.
func (f FactoryFunc) NewLogService(group, stream string, backend BackendConfig, opts Options) (Service, error) {
	return f(group, stream, backend, opts)
}

// Backend kinds understood by the default factory.
const (
	BackendOTLP   = "otlp"
	BackendHTTP   = "http"
	BackendDuckDB = "duckdb"
)

// Compression and encoding values for the HTTP backend.
const (
	CompressionNone = httpsink.CompressionNone
	CompressionZstd = httpsink.CompressionZstd
	CompressionLZ4  = httpsink.CompressionLZ4

	EncodingJSON = httpsink.EncodingJSON
	EncodingCBOR = httpsink.EncodingCBOR
)

// BackendConfig is the client configuration of the remote backend.
type BackendConfig struct {
	Kind          string
	Endpoint      string
	Region        string
	Timeout       time.Duration
	Insecure      bool
	Headers       map[string]string
	Compression   string
	Encoding      string
	DBPath        string
	RetentionDays int
}

// Options are the backend SDK-level batching options.
type Options struct {
	BatchMaxEntries int
	BatchMaxBytes   int
	QueueCapacity   int
	FlushQueueSize  int
	PublishTimeout  time.Duration
}

const (
	DefaultBatchMaxEntries = 10_000
	DefaultBatchMaxBytes   = 1 << 20
	DefaultQueueCapacity   = 50_000
	DefaultFlushQueueSize  = 16
	DefaultBackendTimeout  = 10 * time.Second
)

// ErrUnknownBackend is returned by the default factory for an unsupported kind.
var ErrUnknownBackend = errors.New("logservice: unknown backend")

func (o Options) withDefaults() Options {
	if o.BatchMaxEntries <= 0 {
		o.BatchMaxEntries = DefaultBatchMaxEntries
	}
	if o.BatchMaxBytes <= 0 {
		o.BatchMaxBytes = DefaultBatchMaxBytes
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.QueueCapacity < o.BatchMaxEntries {
		o.QueueCapacity = o.BatchMaxEntries
	}
	if o.FlushQueueSize <= 0 {
		o.FlushQueueSize = DefaultFlushQueueSize
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultBackendTimeout
	}
	return o
}
