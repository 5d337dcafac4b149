// Package httpserver exposes the node's health check, flush trigger and
// counters over HTTP.
package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/logbridge/internal/model"
	"github.com/tinytelemetry/logbridge/internal/node"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = "127.0.0.1:3000"

// Controller is the narrow node contract required by the HTTP API.
type Controller interface {
	model.HealthChecker
	model.Flusher
	Stats() node.Stats
}

// HealthResponse mirrors the trigger-style health reply.
type HealthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Server provides the HTTP API.
type Server struct {
	addr      string
	node      Controller
	logger    *slog.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, n Controller, logger *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		node:      n,
		logger:    logger.With("component", "httpserver"),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/flush", s.handleFlush)
	api.GET("/stats", s.handleStats)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()
	s.logger.Info("listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the active listen address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ok, msg := s.node.CheckIfOnline()
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{Success: ok, Message: msg})
}

func (s *Server) handleFlush(c *gin.Context) {
	if !s.node.TriggerFlush() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"flushed": false})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"flushed": true})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"node":   s.node.Stats(),
	})
}
