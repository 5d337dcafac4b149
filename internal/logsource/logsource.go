// Package logsource unifies the inbound transports behind one interface.
package logsource

import "github.com/tinytelemetry/logbridge/internal/model"

// LogSource is a unified interface for all record input sources.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of record lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin"
}
