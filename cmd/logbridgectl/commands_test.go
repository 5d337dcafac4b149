package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tinytelemetry/logbridge/internal/node"
	"github.com/tinytelemetry/logbridge/internal/socketrpc"
)

type fakeNode struct {
	online    bool
	noService bool
	flushes   atomic.Int64
}

func (f *fakeNode) CheckIfOnline() (bool, string) {
	if f.online {
		return true, node.MsgConnected
	}
	return false, node.MsgNotConnected
}

func (f *fakeNode) TriggerFlush() bool {
	if f.noService {
		return false
	}
	f.flushes.Add(1)
	return true
}

func (f *fakeNode) Stats() node.Stats {
	return node.Stats{State: "started", Received: 12, Forwarded: 9, Ignored: 3, Flushes: f.flushes.Load()}
}

func startDaemon(t *testing.T, n *fakeNode) string {
	t.Helper()
	// Unix socket paths are length limited; keep it short.
	dir, err := os.MkdirTemp("", "lbctl")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "d.sock")

	srv := socketrpc.NewServer(path, n, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestStatusCommand_Online(t *testing.T) {
	sock := startDaemon(t, &fakeNode{online: true})

	out, err := execute(t, "--socket", sock, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "online") || !strings.Contains(out, node.MsgConnected) {
		t.Fatalf("output = %q", out)
	}
}

func TestStatusCommand_OfflineExitsNonZero(t *testing.T) {
	sock := startDaemon(t, &fakeNode{})

	out, err := execute(t, "--socket", sock, "status")
	if !errors.Is(err, errOffline) {
		t.Fatalf("err = %v, want errOffline", err)
	}
	if !strings.Contains(out, node.MsgNotConnected) {
		t.Fatalf("output = %q", out)
	}
}

func TestStatusCommand_DaemonNotRunning(t *testing.T) {
	_, err := execute(t, "--socket", filepath.Join(t.TempDir(), "missing.sock"), "status")
	if err == nil {
		t.Fatal("expected error when daemon is not running")
	}
	if !strings.Contains(err.Error(), "logbridgectl status") {
		t.Fatalf("error should mention the command, got: %v", err)
	}
}

func TestFlushCommand(t *testing.T) {
	n := &fakeNode{online: true}
	sock := startDaemon(t, n)

	out, err := execute(t, "--socket", sock, "flush")
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !strings.Contains(out, "flush triggered") {
		t.Fatalf("output = %q", out)
	}
	if n.flushes.Load() != 1 {
		t.Fatalf("flushes = %d, want 1", n.flushes.Load())
	}
}

func TestFlushCommand_NotAccepted(t *testing.T) {
	n := &fakeNode{noService: true}
	sock := startDaemon(t, n)

	out, err := execute(t, "--socket", sock, "flush")
	if err == nil {
		t.Fatalf("flush should fail when the node has nothing to flush, output %q", out)
	}
	if strings.Contains(out, "flush triggered") {
		t.Fatalf("output = %q, must not claim a flush", out)
	}
}

func TestStatsCommand(t *testing.T) {
	sock := startDaemon(t, &fakeNode{online: true})

	out, err := execute(t, "--socket", sock, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"started", "Received", "12", "Forwarded", "9"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatsCommand_JSON(t *testing.T) {
	sock := startDaemon(t, &fakeNode{online: true})

	out, err := execute(t, "--socket", sock, "stats", "--json")
	if err != nil {
		t.Fatalf("stats --json: %v", err)
	}
	var stats node.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if stats.Received != 12 || stats.Ignored != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSocketPathFromConfig(t *testing.T) {
	sock := startDaemon(t, &fakeNode{online: true})
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(cfgPath, []byte("socket-path: "+sock+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := execute(t, "--config", cfgPath, "status"); err != nil {
		t.Fatalf("status via config: %v", err)
	}
}
