package logsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/tinytelemetry/logbridge/internal/model"
)

const (
	// DefaultStdinBuffer is the default channel buffer size for stdin lines.
	DefaultStdinBuffer = 50_000

	// DefaultStdinMaxLineSize is the default maximum size (in bytes) of a single stdin line.
	DefaultStdinMaxLineSize = 1024 * 1024 // 1MB
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
	Logger      *slog.Logger
}

// StdinSource reads record lines from stdin.
type StdinSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	var c StdinConfig
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultStdinBuffer
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultStdinMaxLineSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, c.BufferSize),
		cancel: cancel,
		logger: c.Logger.With("component", "logsource", "source", "stdin"),
	}
	go s.read(ctx, r, c.MaxLineSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	// One goroutine owns the blocking scan so cancellation does not have to
	// wait for the next line.
	results := make(chan string)
	go func() {
		defer close(results)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case results <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				s.logger.Warn("line exceeded max size, stopping source", "max_bytes", maxLineSize)
				return
			}
			s.logger.Warn("read failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-results:
			if !ok {
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: line}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.cancel() }
func (s *StdinSource) Name() string                       { return "stdin" }
