package main

import (
	"log/slog"
	"time"

	"github.com/tinytelemetry/logbridge/internal/logservice"
	"github.com/tinytelemetry/logbridge/internal/model"
)

const (
	defaultPublishFrequency     = model.DefaultPublishFrequency
	defaultLogGroup             = model.DefaultLogGroup
	defaultMinSeverity          = "INFO"
	defaultBackend              = logservice.BackendOTLP
	defaultBackendTimeout       = logservice.DefaultBackendTimeout
	defaultBackendCompression   = logservice.CompressionNone
	defaultBackendEncoding      = logservice.EncodingJSON
	defaultArchiveRetentionDays = 30 // days, 0 = disabled
	defaultBatchMaxEntries      = logservice.DefaultBatchMaxEntries
	defaultBatchMaxBytes        = logservice.DefaultBatchMaxBytes
	defaultBatchQueueSize       = logservice.DefaultQueueCapacity
	defaultFlushQueueSize       = logservice.DefaultFlushQueueSize
	defaultBindHost             = "127.0.0.1"
	defaultTCPPort              = 4000
	defaultMuxBufferSize        = DefaultMuxBuffer
	defaultAPIPort              = 3000
	defaultLogLevel             = "info"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the daemon entrypoint.
type appConfig struct {
	MinSeverity          string            `mapstructure:"min-severity"`
	IgnoreNodes          []string          `mapstructure:"ignore-nodes"`
	LogGroup             string            `mapstructure:"log-group"`
	LogStream            string            `mapstructure:"log-stream"`
	PublishFrequency     time.Duration     `mapstructure:"publish-frequency"`
	Backend              string            `mapstructure:"backend"`
	BackendEndpoint      string            `mapstructure:"backend-endpoint"`
	BackendRegion        string            `mapstructure:"backend-region"`
	BackendTimeout       time.Duration     `mapstructure:"backend-timeout"`
	BackendInsecure      bool              `mapstructure:"backend-insecure"`
	BackendHeaders       map[string]string `mapstructure:"backend-headers"`
	BackendCompression   string            `mapstructure:"backend-compression"`
	BackendEncoding      string            `mapstructure:"backend-encoding"`
	BackendDBPath        string            `mapstructure:"backend-db-path"`
	ArchiveRetentionDays int               `mapstructure:"archive-retention-days"`
	BatchMaxEntries      int               `mapstructure:"batch-max-entries"`
	BatchMaxBytes        int               `mapstructure:"batch-max-bytes"`
	BatchQueueSize       int               `mapstructure:"batch-queue-size"`
	FlushQueueSize       int               `mapstructure:"flush-queue-size"`
	Processor            string            `mapstructure:"processor"`
	TCPEnabled           bool              `mapstructure:"tcp-enabled"`
	Host                 string            `mapstructure:"host"`
	TCPPort              int               `mapstructure:"tcp-port"`
	TCPAddr              string            `mapstructure:"tcp-addr"`
	MuxBufferSize        int               `mapstructure:"mux-buffer-size"`
	APIEnabled           bool              `mapstructure:"api-enabled"`
	APIPort              int               `mapstructure:"api-port"`
	APIAddr              string            `mapstructure:"api-addr"`
	SocketPath           string            `mapstructure:"socket-path"`
	Console              bool              `mapstructure:"console"`
	LogLevel             string            `mapstructure:"log-level"`
	ConfigPath           string            `mapstructure:"-"` // not from config file

	severity model.Severity
	logLevel slog.Level
}

func (c appConfig) backendConfig() logservice.BackendConfig {
	return logservice.BackendConfig{
		Kind:          c.Backend,
		Endpoint:      c.BackendEndpoint,
		Region:        c.BackendRegion,
		Timeout:       c.BackendTimeout,
		Insecure:      c.BackendInsecure,
		Headers:       c.BackendHeaders,
		Compression:   c.BackendCompression,
		Encoding:      c.BackendEncoding,
		DBPath:        c.BackendDBPath,
		RetentionDays: c.ArchiveRetentionDays,
	}
}

func (c appConfig) serviceOptions() logservice.Options {
	return logservice.Options{
		BatchMaxEntries: c.BatchMaxEntries,
		BatchMaxBytes:   c.BatchMaxBytes,
		QueueCapacity:   c.BatchQueueSize,
		FlushQueueSize:  c.FlushQueueSize,
		PublishTimeout:  c.BackendTimeout,
	}
}
