// Package socketrpc serves the node's health check and control methods as
// JSON-RPC 2.0 over a Unix domain socket.
package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinytelemetry/logbridge/internal/model"
	"github.com/tinytelemetry/logbridge/internal/node"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner.
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize is the maximum request size the scanner will accept (1 MB).
	scannerMaxTokenSize = 1024 * 1024
)

// Controller is the narrow node contract served over the socket.
type Controller interface {
	model.HealthChecker
	model.Flusher
	Stats() node.Stats
}

// Server exposes a Controller over a Unix domain socket.
type Server struct {
	socketPath string
	node       Controller
	logger     *slog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	stopOnce sync.Once
}

// NewServer creates a new socket RPC server.
func NewServer(socketPath string, n Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		node:       n,
		logger:     logger.With("component", "socketrpc"),
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// Remove a stale socket left by a crashed process.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("listening", "socket", s.socketPath)
	return nil
}

// Stop closes the listener and open connections, waits for handlers, and
// removes the socket file. Safe to call twice.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				// Transient errors (e.g. fd limit) must not end the loop.
				s.logger.Warn("accept failed", "error", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{JSONRPC: "2.0", Error: &RPCError{Code: codeParseError, Message: "parse error"}})
			continue
		}
		if err := encoder.Encode(s.dispatch(req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v any) Response {
		data, err := json.Marshal(v)
		if err != nil {
			resp.Error = &RPCError{Code: codeInternalError, Message: err.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	switch req.Method {
	case MethodCheckIfOnline:
		ok, msg := s.node.CheckIfOnline()
		return marshalResult(HealthResult{Success: ok, Message: msg})

	case MethodTriggerFlush:
		return marshalResult(FlushResult{Flushed: s.node.TriggerFlush()})

	case MethodStats:
		return marshalResult(s.node.Stats())

	default:
		resp.Error = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}
