package candy

import "fmt"

// State is the lifecycle stage of a single Run.
type State int

const (
	// StateCreated is a run that has not spawned its process yet.
	StateCreated State = iota
	// StateSpawned means the process started and its pipes are open.
	StateSpawned
	// StateStreaming means the readers are forwarding lines to the dispatcher.
	StateStreaming
	// StateDraining means the process exited and the queue is being drained.
	StateDraining
	// StateCompleted ends a run whose handler saw every line.
	StateCompleted
	// StateEarlyReturned ends a run whose handler returned early.
	StateEarlyReturned
	// StateFailed ends a run that returned an error.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSpawned:
		return "spawned"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateEarlyReturned:
		return "early_returned"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateEarlyReturned || s == StateFailed
}
