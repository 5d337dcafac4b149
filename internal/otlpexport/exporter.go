// Package otlpexport publishes log batches to an OpenTelemetry collector over
// the OTLP/gRPC logs service.
package otlpexport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/logbridge/internal/model"
)

const (
	// DefaultEndpoint is the standard OTLP/gRPC collector address.
	DefaultEndpoint = "localhost:4317"
	// DefaultMaxRequestBytes stays under gRPC's 4MiB default receive limit.
	DefaultMaxRequestBytes = 4<<20 - 64<<10

	scopeName = "logbridge"
)

// Resource attribute keys carried on every export.
const (
	AttrLogGroup    = "log.group"
	AttrLogStream   = "log.stream"
	AttrCloudRegion = "cloud.region"
	AttrServiceName = "service.name"
)

var ErrClosed = errors.New("otlpexport: exporter closed")

// Config configures an Exporter.
type Config struct {
	Endpoint        string
	Insecure        bool
	Headers         map[string]string
	Region          string
	Timeout         time.Duration
	MaxRequestBytes int

	// DialOptions are appended to the defaults, e.g. a custom dialer.
	DialOptions []grpc.DialOption
}

// Exporter implements model.BatchPublisher over OTLP/gRPC.
type Exporter struct {
	conn     *grpc.ClientConn
	client   collogspb.LogsServiceClient
	headers  metadata.MD
	region   string
	timeout  time.Duration
	maxBytes int

	lastOK    atomic.Bool
	rejected  atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates an exporter. The connection is established lazily by gRPC;
// New only starts the first connection attempt.
func New(cfg Config) (*Exporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBytes
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, cfg.DialOptions...)

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlpexport: dial %s: %w", endpoint, err)
	}
	conn.Connect()

	return &Exporter{
		conn:     conn,
		client:   collogspb.NewLogsServiceClient(conn),
		headers:  metadata.New(cfg.Headers),
		region:   cfg.Region,
		timeout:  cfg.Timeout,
		maxBytes: maxBytes,
	}, nil
}

// Publish exports batch, split into as many requests as the size limit needs.
func (e *Exporter) Publish(ctx context.Context, batch model.LogBatch) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(batch.Events) == 0 {
		return nil
	}
	if len(e.headers) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, e.headers)
	}

	for _, req := range e.buildRequests(batch) {
		if err := e.export(ctx, req); err != nil {
			e.lastOK.Store(false)
			return err
		}
	}
	e.lastOK.Store(true)
	return nil
}

func (e *Exporter) export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	resp, err := e.client.Export(ctx, req)
	if err != nil {
		return fmt.Errorf("otlpexport: export: %w", err)
	}
	// Rejected records are not retried; resending would be refused again.
	if ps := resp.GetPartialSuccess(); ps != nil {
		e.rejected.Add(ps.GetRejectedLogRecords())
	}
	return nil
}

// Rejected returns the number of records the collector refused so far.
func (e *Exporter) Rejected() int64 {
	return e.rejected.Load()
}

// buildRequests converts batch into requests no larger than maxBytes.
// A single oversized record still gets its own request.
func (e *Exporter) buildRequests(batch model.LogBatch) []*collogspb.ExportLogsServiceRequest {
	resource := e.resource(batch)
	base := proto.Size(newRequest(resource, nil))

	var (
		out     []*collogspb.ExportLogsServiceRequest
		records []*logspb.LogRecord
		size    = base
	)
	for _, ev := range batch.Events {
		rec := toRecord(ev)
		// Field tag and length prefix add a few bytes per record.
		n := proto.Size(rec) + 8
		if len(records) > 0 && size+n > e.maxBytes {
			out = append(out, newRequest(resource, records))
			records = nil
			size = base
		}
		records = append(records, rec)
		size += n
	}
	if len(records) > 0 {
		out = append(out, newRequest(resource, records))
	}
	return out
}

func (e *Exporter) resource(batch model.LogBatch) *resourcepb.Resource {
	attrs := []*commonpb.KeyValue{
		stringAttr(AttrServiceName, scopeName),
		stringAttr(AttrLogGroup, batch.Group),
		stringAttr(AttrLogStream, batch.Stream),
	}
	if e.region != "" {
		attrs = append(attrs, stringAttr(AttrCloudRegion, e.region))
	}
	return &resourcepb.Resource{Attributes: attrs}
}

func newRequest(resource *resourcepb.Resource, records []*logspb.LogRecord) *collogspb.ExportLogsServiceRequest {
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: resource,
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: scopeName},
				LogRecords: records,
			}},
		}},
	}
}

func toRecord(ev model.LogEvent) *logspb.LogRecord {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	nanos := uint64(ts.UnixNano())
	return &logspb.LogRecord{
		TimeUnixNano:         nanos,
		ObservedTimeUnixNano: nanos,
		Body:                 &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: strings.TrimSuffix(ev.Message, "\n")}},
	}
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}}}
}

// IsConnected reports whether the channel is ready, or idle after a
// successful export.
func (e *Exporter) IsConnected() bool {
	if e.closed.Load() {
		return false
	}
	switch e.conn.GetState() {
	case connectivity.Ready:
		return true
	case connectivity.Idle:
		return e.lastOK.Load()
	default:
		return false
	}
}

// Close tears down the gRPC connection. Safe to call twice.
func (e *Exporter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}
