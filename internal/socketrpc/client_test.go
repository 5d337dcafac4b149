package socketrpc_test

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/tinytelemetry/logbridge/internal/node"
	"github.com/tinytelemetry/logbridge/internal/socketrpc"
)

type mockNode struct {
	flushes atomic.Int64
}

func (m *mockNode) CheckIfOnline() (bool, string) { return true, node.MsgConnected }
func (m *mockNode) TriggerFlush() bool           { m.flushes.Add(1); return true }
func (m *mockNode) Stats() node.Stats {
	return node.Stats{State: "started", Received: 10, Forwarded: 8, Flushes: m.flushes.Load()}
}

func startTestServer(t *testing.T) (string, *socketrpc.Server, *mockNode) {
	t.Helper()
	// Unix socket paths are length limited; keep it short.
	dir, err := os.MkdirTemp("", "lbrpc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sockPath := filepath.Join(dir, "t.sock")

	n := &mockNode{}
	srv := socketrpc.NewServer(sockPath, n, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return sockPath, srv, n
}

func TestRoundtrip(t *testing.T) {
	sockPath, srv, n := startTestServer(t)
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ok, msg, err := client.CheckIfOnline()
	if err != nil {
		t.Fatalf("CheckIfOnline: %v", err)
	}
	if !ok || msg != node.MsgConnected {
		t.Fatalf("CheckIfOnline = %v, %q", ok, msg)
	}

	if flushed, err := client.TriggerFlush(); err != nil || !flushed {
		t.Fatalf("TriggerFlush = %v, %v", flushed, err)
	}
	if n.flushes.Load() != 1 {
		t.Fatalf("flushes = %d, want 1", n.flushes.Load())
	}

	stats, err := client.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Received != 10 || stats.Flushes != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestMalformedRequest(t *testing.T) {
	sockPath, srv, _ := startTestServer(t)
	defer srv.Stop()

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatal("no response")
	}
	var resp socketrpc.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("error = %+v, want parse error", resp.Error)
	}
}

func TestSecondServerRefused(t *testing.T) {
	sockPath, srv, _ := startTestServer(t)
	defer srv.Stop()

	other := socketrpc.NewServer(sockPath, &mockNode{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := other.Start(); err == nil {
		other.Stop()
		t.Fatal("expected error when a server is already listening")
	}
}

func TestStopWithOpenClient(t *testing.T) {
	sockPath, srv, _ := startTestServer(t)

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if _, _, err := client.CheckIfOnline(); err != nil {
		t.Fatalf("CheckIfOnline: %v", err)
	}

	srv.Stop()
	srv.Stop()
	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Fatalf("socket file still present: %v", err)
	}
	if _, _, err := client.CheckIfOnline(); err == nil {
		t.Fatal("call after Stop should fail")
	}
}
