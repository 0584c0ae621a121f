package candy

import "time"

// OutputKind says how a run finished.
type OutputKind int

const (
	// Complete means the handler never returned early.
	Complete OutputKind = iota
	// EarlyReturned means the handler stopped observing output early.
	EarlyReturned
)

// String returns the kind name.
func (k OutputKind) String() string {
	switch k {
	case Complete:
		return "complete"
	case EarlyReturned:
		return "early_return"
	default:
		return "unknown"
	}
}

// Output is returned by Run when the process exited successfully.
//
// For Complete runs the line slices hold everything the process printed.
// For EarlyReturned runs they hold the lines handled up to and including
// the one that triggered the early return, and Value holds the handler's
// value.
type Output[T any] struct {
	RunID    string
	Kind     OutputKind
	ExitCode int // exit status of the process

	StdoutLines []string
	StderrLines []string

	// Value is the handler's early-return value. Zero for Complete runs.
	Value T

	// Discarded counts lines the process printed after the early return
	// that were never handed to the handler.
	Discarded int

	Duration time.Duration
}

// IsEarlyReturn reports whether the handler returned early.
func (o *Output[T]) IsEarlyReturn() bool { return o.Kind == EarlyReturned }
