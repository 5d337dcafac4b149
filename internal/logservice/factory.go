package logservice

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinytelemetry/logbridge/internal/duckdb"
	"github.com/tinytelemetry/logbridge/internal/httpsink"
	"github.com/tinytelemetry/logbridge/internal/model"
	"github.com/tinytelemetry/logbridge/internal/otlpexport"
)

// NewFactory returns the default Factory. It builds a publisher for
// BackendConfig.Kind and wraps it in a Batcher.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return FactoryFunc(func(group, stream string, backend BackendConfig, opts Options) (Service, error) {
		publisher, err := NewPublisher(group, stream, backend, logger)
		if err != nil {
			return nil, err
		}
		if opts.PublishTimeout <= 0 {
			opts.PublishTimeout = backend.Timeout
		}
		return NewBatcher(group, stream, publisher, opts, logger), nil
	})
}

// NewPublisher builds the backend publisher selected by backend.Kind.
func NewPublisher(group, stream string, backend BackendConfig, logger *slog.Logger) (model.BatchPublisher, error) {
	if strings.TrimSpace(group) == "" || strings.TrimSpace(stream) == "" {
		return nil, fmt.Errorf("logservice: log group and stream are required")
	}
	timeout := backend.Timeout
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}

	switch strings.ToLower(strings.TrimSpace(backend.Kind)) {
	case BackendOTLP, "":
		exp, err := otlpexport.New(otlpexport.Config{
			Endpoint: backend.Endpoint,
			Insecure: backend.Insecure,
			Headers:  backend.Headers,
			Region:   backend.Region,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("logservice: otlp backend: %w", err)
		}
		return exp, nil

	case BackendHTTP:
		pub, err := httpsink.New(httpsink.Config{
			Endpoint:    backend.Endpoint,
			Headers:     backend.Headers,
			Region:      backend.Region,
			Compression: backend.Compression,
			Encoding:    backend.Encoding,
			Timeout:     timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("logservice: http backend: %w", err)
		}
		return pub, nil

	case BackendDuckDB:
		archive, err := duckdb.OpenArchive(duckdb.ArchiveConfig{
			Path:          backend.DBPath,
			RetentionDays: backend.RetentionDays,
			QueryTimeout:  timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("logservice: duckdb backend: %w", err)
		}
		return archive, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend.Kind)
	}
}
