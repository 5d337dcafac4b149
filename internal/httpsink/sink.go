// Package httpsink publishes log batches as HTTP POST requests.
package httpsink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// HeaderBatchID carries the per-batch idempotency key.
const HeaderBatchID = "X-Batch-ID"

const probeTimeout = 2 * time.Second

var (
	ErrNoEndpoint = errors.New("httpsink: endpoint is required")
	ErrClosed     = errors.New("httpsink: publisher closed")
)

// Config configures a Publisher.
type Config struct {
	Endpoint    string
	Headers     map[string]string
	Region      string
	Compression string
	Encoding    string
	Timeout     time.Duration

	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// Publisher implements model.BatchPublisher over HTTP.
type Publisher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New validates cfg and probes the endpoint once. An unreachable endpoint is
// not an error; it only leaves the publisher reporting disconnected.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	cfg.Encoding = strings.ToLower(cfg.Encoding)
	cfg.Compression = strings.ToLower(cfg.Compression)
	if _, err := encode(cfg.Encoding, Payload{}); err != nil {
		return nil, err
	}
	if _, err := compress(cfg.Compression, nil); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	p := &Publisher{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "httpsink"),
	}
	p.probe()
	return p, nil
}

// probe marks the publisher connected if the endpoint answers at all.
func (p *Publisher) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.Endpoint, nil)
	if err != nil {
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("endpoint probe failed", "endpoint", p.cfg.Endpoint, "error", err)
		return
	}
	resp.Body.Close()
	p.connected.Store(resp.StatusCode < http.StatusInternalServerError)
}

// Publish POSTs batch as one request.
func (p *Publisher) Publish(ctx context.Context, batch model.LogBatch) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if len(batch.Events) == 0 {
		return nil
	}

	payload := Payload{
		BatchID: uuid.NewString(),
		Group:   batch.Group,
		Stream:  batch.Stream,
		Region:  p.cfg.Region,
		Events:  make([]Event, len(batch.Events)),
	}
	for i, e := range batch.Events {
		payload.Events[i] = Event{Timestamp: e.Timestamp.UnixMilli(), Message: e.Message}
	}

	body, err := encode(p.cfg.Encoding, payload)
	if err != nil {
		return fmt.Errorf("httpsink: encode: %w", err)
	}
	body, err = compress(p.cfg.Compression, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpsink: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType(p.cfg.Encoding))
	if p.cfg.Compression != "" && p.cfg.Compression != CompressionNone {
		req.Header.Set("Content-Encoding", p.cfg.Compression)
	}
	req.Header.Set(HeaderBatchID, payload.BatchID)
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.connected.Store(false)
		return fmt.Errorf("httpsink: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	// Any answer means the endpoint is reachable.
	p.connected.Store(resp.StatusCode < http.StatusInternalServerError)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("httpsink: post: unexpected status %d", resp.StatusCode)
	}
	p.logger.Debug("batch published", "batch_id", payload.BatchID, "events", len(payload.Events), "bytes", len(body))
	return nil
}

// IsConnected reports the outcome of the most recent request.
func (p *Publisher) IsConnected() bool {
	return !p.closed.Load() && p.connected.Load()
}

// Close releases idle connections. Safe to call twice.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.client.CloseIdleConnections()
	})
	return nil
}
