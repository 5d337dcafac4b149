package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/logbridge/internal/node"
)

const callTimeout = 10 * time.Second

// Client calls a Server over its Unix domain socket.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := Request{JSONRPC: "2.0", ID: c.nextID, Method: method}

	c.conn.SetDeadline(time.Now().Add(callTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.ID != req.ID {
		return fmt.Errorf("socketrpc: response id %d for request %d", resp.ID, req.ID)
	}
	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// CheckIfOnline returns the node's health check answer.
func (c *Client) CheckIfOnline() (bool, string, error) {
	var result HealthResult
	err := c.call(MethodCheckIfOnline, &result)
	return result.Success, result.Message, err
}

// TriggerFlush asks the node to flush and reports whether it accepted.
func (c *Client) TriggerFlush() (bool, error) {
	var result FlushResult
	err := c.call(MethodTriggerFlush, &result)
	return result.Flushed, err
}

// Stats returns the node counters.
func (c *Client) Stats() (node.Stats, error) {
	var result node.Stats
	err := c.call(MethodStats, &result)
	return result, err
}
