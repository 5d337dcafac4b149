package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the forwarding node's control surface over a
// Unix domain socket, one JSON object per line.
//
//   Method          Params    Result
//   ─────────────   ───────   ──────────────────────────────────
//   CheckIfOnline   (none)    HealthResult{success, message}
//   TriggerFlush    (none)    FlushResult{flushed}
//   Stats           (none)    node.Stats
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32603  Internal error (marshal failure)

const (
	MethodCheckIfOnline = "CheckIfOnline"
	MethodTriggerFlush  = "TriggerFlush"
	MethodStats         = "Stats"
)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// HealthResult is the CheckIfOnline reply.
type HealthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FlushResult is the TriggerFlush reply.
type FlushResult struct {
	Flushed bool `json:"flushed"`
}

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/logbridge/logbridge.sock, falling back to
// ~/.local/state/logbridge/logbridge.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "logbridge", "logbridge.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "logbridge.sock")
	}
	return filepath.Join(home, ".local", "state", "logbridge", "logbridge.sock")
}
