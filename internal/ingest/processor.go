package ingest

import (
	"strings"
	"sync"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// DefaultMaxPendingBytes bounds how much of an unterminated JSON object a
// single stream may buffer before its lines are released as plain text.
const DefaultMaxPendingBytes = 1024 * 1024 // 1MB

// Processor decodes JSON records, accumulating objects that span several
// lines, and falls back to plain text for anything else. Accumulation is
// kept per stream so interleaved publishers cannot splice into each other.
type Processor struct {
	mu              sync.Mutex
	sink            RecordSink
	sourceName      string
	maxPendingBytes int

	// open multi-line objects keyed by stream
	pending map[string]*pendingObject
}

type pendingObject struct {
	source string
	lines  []string
	size   int
	depth  int
}

// NewProcessor creates a parsing processor.
func NewProcessor(sink RecordSink, sourceName string) *Processor {
	return &Processor{
		sink:            sink,
		sourceName:      sourceName,
		maxPendingBytes: DefaultMaxPendingBytes,
		pending:         make(map[string]*pendingObject),
	}
}

func (p *Processor) Name() string { return ProcessorModeParse }

// ProcessLine processes an untagged line using the processor source name.
func (p *Processor) ProcessLine(line string) *ProcessResult {
	return p.ProcessEnvelope(model.IngestEnvelope{Line: line})
}

// ProcessEnvelope processes one source-tagged line. It returns nil while a
// multi-line JSON object is still being accumulated. An end-of-stream
// envelope releases whatever that stream left unterminated as text records.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	if env.End {
		return p.release(p.streamKey(env))
	}
	if strings.TrimSpace(env.Line) == "" {
		return nil
	}

	p.mu.Lock()
	source := env.Source
	if source == "" {
		source = p.sourceName
	}
	key := env.Stream
	if key == "" {
		key = source
	}
	complete, stale, consumed := p.accumulate(key, env.Line, source)
	p.mu.Unlock()

	if stale != nil {
		return p.emitText(stale.lines, stale.source)
	}
	if !consumed {
		return p.emit(env.Line, source)
	}
	if complete == nil {
		return nil
	}
	return p.emit(strings.TrimSpace(strings.Join(complete.lines, "\n")), complete.source)
}

func (p *Processor) streamKey(env model.IngestEnvelope) string {
	if env.Stream != "" {
		return env.Stream
	}
	if env.Source != "" {
		return env.Source
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourceName
}

// release drops the open object of stream key and emits its lines as text.
func (p *Processor) release(key string) *ProcessResult {
	p.mu.Lock()
	obj := p.pending[key]
	delete(p.pending, key)
	p.mu.Unlock()

	if obj == nil {
		return nil
	}
	return p.emitText(obj.lines, obj.source)
}

func (p *Processor) emit(line, source string) *ProcessResult {
	records, ok := ParseRecords(line, source)
	if !ok {
		records = []model.LogRecord{TextRecord(line, source)}
	}
	p.record(records)
	return &ProcessResult{Records: records}
}

func (p *Processor) emitText(lines []string, source string) *ProcessResult {
	records := make([]model.LogRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, TextRecord(line, source))
	}
	p.record(records)
	return &ProcessResult{Records: records}
}

func (p *Processor) record(records []model.LogRecord) {
	if p.sink == nil {
		return
	}
	for _, rec := range records {
		p.sink.RecordLog(rec)
	}
}

// accumulate buffers lines of a JSON object that spans several lines on the
// stream key. It reports whether line was consumed. Once the object closes it
// is returned as complete; if it outgrows maxPendingBytes it is returned as
// stale and should be emitted line by line. Must be called with p.mu held.
func (p *Processor) accumulate(key, line, source string) (complete, stale *pendingObject, consumed bool) {
	obj := p.pending[key]
	if obj == nil {
		if !strings.HasPrefix(strings.TrimSpace(line), "{") {
			return nil, nil, false
		}
		depth := CountJSONDepth(line)
		if depth <= 0 {
			// Complete on one line; no buffering needed.
			return nil, nil, false
		}
		obj = &pendingObject{source: source, depth: depth}
		p.pending[key] = obj
	} else {
		obj.depth += CountJSONDepth(line)
	}
	obj.lines = append(obj.lines, line)
	obj.size += len(line) + 1

	switch {
	case obj.depth <= 0:
		delete(p.pending, key)
		return obj, nil, true
	case obj.size > p.maxPendingBytes:
		delete(p.pending, key)
		return nil, obj, true
	}
	return nil, nil, true
}

// Pending reports how many streams have an unterminated object buffered.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}

// SetSourceName updates the default source name for untagged lines.
func (p *Processor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}
