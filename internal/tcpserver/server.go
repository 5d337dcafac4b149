// Package tcpserver accepts newline-delimited log records over TCP.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/logbridge/internal/model"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = "127.0.0.1:4000"

	// DefaultLineChannelSize is the default buffer size for the incoming line channel.
	DefaultLineChannelSize = 100_000

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single record line.
	DefaultMaxLineSize = 1024 * 1024 // 1MB

	// SourceName tags envelopes produced by this server.
	SourceName = "tcp"
)

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	LineChannelSize int
	MaxLineSize     int
	Logger          *slog.Logger
}

// Server listens for newline-delimited records and emits one envelope per
// non-empty line.
type Server struct {
	listener    net.Listener
	addr        string
	lineChan    chan model.IngestEnvelope
	maxLineSize int
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	stopOnce sync.Once
	nextConn atomic.Uint64
}

// NewServer creates a new TCP server. Default addr is DefaultAddr.
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	var c ServerConfig
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.LineChannelSize <= 0 {
		c.LineChannelSize = DefaultLineChannelSize
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultMaxLineSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		lineChan:    make(chan model.IngestEnvelope, c.LineChannelSize),
		maxLineSize: c.MaxLineSize,
		logger:      c.Logger.With("component", "tcpserver"),
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.logger.Info("listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// track registers conn so Stop can unblock its reader. It returns false
// once the server is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	stream := fmt.Sprintf("%s#%d", SourceName, s.nextConn.Add(1))
	s.logger.Debug("connection opened", "remote", remote, "stream", stream)
	defer s.endStream(stream)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case s.lineChan <- model.IngestEnvelope{Source: SourceName, Stream: stream, Line: line}:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.logger.Warn("dropped connection, line exceeds max size", "remote", remote, "max_bytes", s.maxLineSize)
			return
		}
		s.logger.Warn("read failed", "remote", remote, "error", err)
	}
}

// endStream tells processors the connection closed so any partial record it
// left behind can be released. Nothing is sent once the server is stopping.
func (s *Server) endStream(stream string) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.lineChan <- model.IngestEnvelope{Source: SourceName, Stream: stream, End: true}:
	case <-s.ctx.Done():
	}
}

// Stop closes the listener and open connections, waits for readers and
// closes the line channel. Safe to call twice.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		close(s.lineChan)
	})
	return nil
}

// Lines returns the channel of received envelopes.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.lineChan
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
