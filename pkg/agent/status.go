package agent

import (
	"sync"
	"time"
)

// Agent lifecycle states reported through the status surface.
const (
	StateStarting   = "starting"
	StateIdle       = "idle"
	StateProcessing = "processing"
	StateHealing    = "healing"
	StateStopped    = "stopped"
)

// Status is a point-in-time view of what the agent is doing.
type Status struct {
	State      string    `json:"state"`
	Message    string    `json:"message"`
	LastUpdate time.Time `json:"last_update"`
}

// StatusTracker holds the current agent status behind a lock so the HTTP
// facade can read it while the healing loop writes it.
type StatusTracker struct {
	mu      sync.RWMutex
	current Status
}

// NewStatusTracker creates a tracker in the starting state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		current: Status{
			State:      StateStarting,
			Message:    "agent initializing",
			LastUpdate: time.Now().UTC(),
		},
	}
}

// Set replaces the current state and message, stamping the update time.
func (t *StatusTracker) Set(state, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = Status{
		State:      state,
		Message:    message,
		LastUpdate: time.Now().UTC(),
	}
}

// Get returns the current status.
func (t *StatusTracker) Get() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}
