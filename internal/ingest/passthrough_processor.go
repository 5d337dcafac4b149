package ingest

import (
	"strings"
	"sync/atomic"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// PassthroughProcessor forwards every line verbatim, skipping JSON decoding.
// The severity is guessed from the text and the record is named after the
// envelope source.
type PassthroughProcessor struct {
	sink       RecordSink
	sourceName atomic.Pointer[string]
}

// NewPassthroughProcessor creates a passthrough processor. sourceName names
// lines that arrive without a source tag.
func NewPassthroughProcessor(sink RecordSink, sourceName string) *PassthroughProcessor {
	p := &PassthroughProcessor{sink: sink}
	p.SetSourceName(sourceName)
	return p
}

func (p *PassthroughProcessor) Name() string { return ProcessorModePassthrough }

// ProcessLine handles a line with no source tag.
func (p *PassthroughProcessor) ProcessLine(line string) *ProcessResult {
	return p.ProcessEnvelope(model.IngestEnvelope{Line: line})
}

// ProcessEnvelope turns one line into one record. Blank lines yield nil.
func (p *PassthroughProcessor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	line := strings.TrimRight(env.Line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	name := env.Source
	if name == "" {
		name = *p.sourceName.Load()
	}

	rec := TextRecord(line, name)
	if p.sink != nil {
		p.sink.RecordLog(rec)
	}
	return &ProcessResult{Records: []model.LogRecord{rec}}
}

// SetSourceName changes the name given to untagged lines.
func (p *PassthroughProcessor) SetSourceName(name string) {
	p.sourceName.Store(&name)
}
