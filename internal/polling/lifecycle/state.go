package lifecycle

import (
	"time"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateRunning      State = "running"
	StateFailed       State = "failed"
	StateStopped      State = "stopped"
)

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateStopped},
	StateConnecting:   {StateConnected, StateFailed, StateStopped},
	StateConnected:    {StateRunning, StateFailed, StateStopped},
	StateRunning:      {StateFailed, StateStopped},
	StateFailed:       {StateDisconnected, StateStopped},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateDisconnected:
		return "Disconnected - waiting to connect"
	case StateConnecting:
		return "Connecting - opening a backend session"
	case StateConnected:
		return "Connected - resolving identity and check sources"
	case StateRunning:
		return "Running - polling due sections every cycle"
	case StateFailed:
		return "Failed - session torn down, backing off"
	case StateStopped:
		return "Stopped - terminal, no further reconnects"
	default:
		return "Unknown state"
	}
}
