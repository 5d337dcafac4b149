// Package ingest turns raw inbound lines into log records and hands them to
// a record sink.
package ingest

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/logbridge/internal/model"
)

const (
	// ProcessorModeParse decodes JSON records and falls back to plain text.
	ProcessorModeParse = "parse"
	// ProcessorModePassthrough treats every line as a plain-text message.
	ProcessorModePassthrough = "passthrough"
)

// RecordSink receives decoded records. The forwarding node implements it.
type RecordSink = model.RecordSink

// ProcessResult holds the records produced from one envelope.
type ProcessResult struct {
	Records []model.LogRecord
}

// EnvelopeProcessor consumes source-tagged ingest lines and emits records.
type EnvelopeProcessor interface {
	Name() string
	ProcessEnvelope(model.IngestEnvelope) *ProcessResult
}

// NewEnvelopeProcessor creates the processor for mode. An empty mode selects
// ProcessorModeParse.
func NewEnvelopeProcessor(mode string, sink RecordSink, sourceName string) (EnvelopeProcessor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ProcessorModeParse:
		return NewProcessor(sink, sourceName), nil
	case ProcessorModePassthrough:
		return NewPassthroughProcessor(sink, sourceName), nil
	default:
		return nil, fmt.Errorf("ingest: invalid processor mode %q (want %q or %q)", mode, ProcessorModeParse, ProcessorModePassthrough)
	}
}
