package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 50_000

// SourceMultiplexer merges several record sources into one stream. The output
// closes once every source has closed or Stop is called.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	sources   []NamedLogSource
	envelopes chan model.IngestEnvelope
	forwarded atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSourceMultiplexer creates a multiplexer over sources. It does not read
// until Start.
func NewSourceMultiplexer(parent context.Context, sources []NamedLogSource, buffer int, logger *slog.Logger) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &SourceMultiplexer{
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With("component", "mux"),
		sources:   sources,
		envelopes: make(chan model.IngestEnvelope, buffer),
	}
}

// Start launches one forwarder per source.
func (m *SourceMultiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}
		for _, src := range m.sources {
			m.wg.Add(1)
			go m.forward(src)
		}
		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

// Stop stops every source and waits for the forwarders to exit.
func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.sources) > 0
}

// SourceNames lists the multiplexed sources in registration order.
func (m *SourceMultiplexer) SourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		names = append(names, src.Name())
	}
	return names
}

// Forwarded is the number of envelopes handed to the output so far.
func (m *SourceMultiplexer) Forwarded() int64 {
	return m.forwarded.Load()
}

func (m *SourceMultiplexer) Lines() <-chan model.IngestEnvelope {
	return m.envelopes
}

func (m *SourceMultiplexer) forward(src NamedLogSource) {
	defer m.wg.Done()

	in := src.Lines()
	for {
		select {
		case <-m.ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				m.logger.Debug("source closed", "source", src.Name())
				return
			}
			if env.Line == "" && !env.End {
				continue
			}
			select {
			case m.envelopes <- env:
				m.forwarded.Add(1)
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.envelopes)
	})
}
