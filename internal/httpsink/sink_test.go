package httpsink

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/logbridge/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// receiver captures POSTed batches.
type receiver struct {
	mu       sync.Mutex
	status   int
	payloads []Payload
	requests []*http.Request
	errs     []error
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	body, _ := io.ReadAll(req.Body)
	encoding := EncodingJSON
	if req.Header.Get("Content-Type") == "application/cbor" {
		encoding = EncodingCBOR
	}
	p, err := Decode(encoding, req.Header.Get("Content-Encoding"), body)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	r.requests = append(r.requests, req)
	r.errs = append(r.errs, err)
	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func newReceiver(t *testing.T) (*receiver, *httptest.Server) {
	t.Helper()
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	t.Cleanup(srv.Close)
	return rcv, srv
}

func testBatch() model.LogBatch {
	return model.LogBatch{
		Group:  "robots",
		Stream: "r1",
		Events: []model.LogEvent{
			{Timestamp: time.UnixMilli(10_000), Message: "10.000000 ERROR [node name: a] boom\n"},
			{Timestamp: time.UnixMilli(11_500), Message: "11.500000 INFO [node name: b] hi\n"},
		},
	}
}

func TestPublisher_EncodingsAndCompressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		encoding    string
		compression string
	}{
		{EncodingJSON, ""},
		{EncodingJSON, CompressionZstd},
		{EncodingJSON, CompressionLZ4},
		{EncodingCBOR, CompressionNone},
		{EncodingCBOR, CompressionZstd},
		{EncodingCBOR, CompressionLZ4},
	}
	for _, tt := range tests {
		t.Run(tt.encoding+"/"+tt.compression, func(t *testing.T) {
			t.Parallel()
			rcv, srv := newReceiver(t)
			pub, err := New(Config{
				Endpoint:    srv.URL,
				Region:      "eu-west-1",
				Encoding:    tt.encoding,
				Compression: tt.compression,
				Timeout:     time.Second,
			}, discardLogger())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer pub.Close()

			if err := pub.Publish(context.Background(), testBatch()); err != nil {
				t.Fatalf("Publish: %v", err)
			}

			rcv.mu.Lock()
			defer rcv.mu.Unlock()
			if len(rcv.payloads) != 1 {
				t.Fatalf("received %d requests, want 1", len(rcv.payloads))
			}
			if rcv.errs[0] != nil {
				t.Fatalf("decode: %v", rcv.errs[0])
			}
			p := rcv.payloads[0]
			if p.Group != "robots" || p.Stream != "r1" || p.Region != "eu-west-1" {
				t.Fatalf("payload header = %+v", p)
			}
			if len(p.Events) != 2 || p.Events[0].Message != "10.000000 ERROR [node name: a] boom\n" || p.Events[1].Timestamp != 11_500 {
				t.Fatalf("events = %+v", p.Events)
			}
			if got := rcv.requests[0].Header.Get(HeaderBatchID); got != p.BatchID {
				t.Fatalf("%s = %q, body batch_id = %q", HeaderBatchID, got, p.BatchID)
			}
			if _, err := uuid.Parse(p.BatchID); err != nil {
				t.Fatalf("batch id %q is not a UUID: %v", p.BatchID, err)
			}
		})
	}
}

func TestPublisher_CustomHeaders(t *testing.T) {
	rcv, srv := newReceiver(t)
	pub, err := New(Config{Endpoint: srv.URL, Headers: map[string]string{"Authorization": "Bearer k"}}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := pub.Publish(context.Background(), testBatch()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	rcv.mu.Lock()
	defer rcv.mu.Unlock()
	if got := rcv.requests[0].Header.Get("Authorization"); got != "Bearer k" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestPublisher_Connectivity(t *testing.T) {
	rcv, srv := newReceiver(t)
	pub, err := New(Config{Endpoint: srv.URL}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !pub.IsConnected() {
		t.Fatal("IsConnected() = false after successful probe")
	}

	rcv.mu.Lock()
	rcv.status = http.StatusServiceUnavailable
	rcv.mu.Unlock()
	if err := pub.Publish(context.Background(), testBatch()); err == nil {
		t.Fatal("Publish should fail on 503")
	}
	if pub.IsConnected() {
		t.Fatal("IsConnected() = true after a 503")
	}

	rcv.mu.Lock()
	rcv.status = http.StatusBadRequest
	rcv.mu.Unlock()
	if err := pub.Publish(context.Background(), testBatch()); err == nil {
		t.Fatal("Publish should fail on 400")
	}
	if !pub.IsConnected() {
		t.Fatal("a 4xx answer still means the endpoint is reachable")
	}

	pub.Close()
	if pub.IsConnected() {
		t.Fatal("IsConnected() = true after Close")
	}
	if err := pub.Publish(context.Background(), testBatch()); err != ErrClosed {
		t.Fatalf("Publish after Close = %v, want ErrClosed", err)
	}
}

func TestPublisher_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	pub, err := New(Config{Endpoint: url, Timeout: time.Second}, discardLogger())
	if err != nil {
		t.Fatalf("New should not fail for an unreachable endpoint: %v", err)
	}
	if pub.IsConnected() {
		t.Fatal("IsConnected() = true for a closed server")
	}
	if err := pub.Publish(context.Background(), testBatch()); err == nil {
		t.Fatal("Publish to a closed server should fail")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no endpoint", Config{}},
		{"bad encoding", Config{Endpoint: "http://127.0.0.1:1", Encoding: "xml"}},
		{"bad compression", Config{Endpoint: "http://127.0.0.1:1", Compression: "gzip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg, discardLogger()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
