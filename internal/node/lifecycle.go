package node

import "sync"

// Lifecycle is the generic start/stop contract the node layers its own
// service handling on.
type Lifecycle interface {
	Start() bool
	Shutdown() bool
}

// BaseService is the default Lifecycle. It only tracks whether it is running.
type BaseService struct {
	mu      sync.Mutex
	running bool
}

// Start marks the service running.
func (b *BaseService) Start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
	return true
}

// Shutdown marks the service stopped.
func (b *BaseService) Shutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	return true
}

// Running reports whether Start was called more recently than Shutdown.
func (b *BaseService) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// State is the node's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
