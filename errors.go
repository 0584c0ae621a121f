package candy

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by New and Run. Match them with errors.Is.
var (
	// ErrInvalidTask means the command text is empty or its executable
	// cannot be found. Returned by New before anything is spawned.
	ErrInvalidTask = errors.New("invalid task")
	// ErrCouldNotFindCurrentDirectory means New could not resolve the
	// default working directory.
	ErrCouldNotFindCurrentDirectory = errors.New("could not find current directory")
	// ErrCouldNotSpawn means the OS refused to start the process.
	ErrCouldNotSpawn = errors.New("could not spawn")
	// ErrCouldNotWait means waiting for the process failed.
	ErrCouldNotWait = errors.New("could not wait")
	// ErrTaskFailure means the process exited with a non-zero status. It
	// takes precedence over any early return the handler requested.
	ErrTaskFailure = errors.New("task failed")
	// ErrPoisonedLog means the handler panicked while processing a line.
	ErrPoisonedLog = errors.New("poisoned log")
	// ErrEarlyReturn wraps an error a handler returned via EarlyReturnErr.
	ErrEarlyReturn = errors.New("early return")
)

// Error is the concrete error returned by New and Run.
type Error struct {
	Kind     error  // one of the Err* kinds above
	Task     string // the command text
	Reason   string // human-readable detail, may be empty
	ExitCode int    // set for ErrTaskFailure
	RunID    string // set once the process has been spawned
	Err      error  // underlying cause: OS error or handler error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	switch e.Kind {
	case ErrInvalidTask:
		fmt.Fprintf(&b, "'%s' could not run because %s", e.Task, e.Reason)
	case ErrTaskFailure:
		fmt.Fprintf(&b, "'%s' failed with exit status %d", e.Task, e.ExitCode)
	case ErrEarlyReturn:
		if e.Err != nil {
			return e.Err.Error()
		}
		b.WriteString(e.Kind.Error())
	default:
		fmt.Fprintf(&b, "%s '%s'", e.Kind, e.Task)
		if e.Reason != "" {
			fmt.Fprintf(&b, ": %s", e.Reason)
		}
		if e.Err != nil {
			fmt.Fprintf(&b, ": %v", e.Err)
		}
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RunIDOf returns the run ID carried by err, if the process was spawned.
func RunIDOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.RunID != "" {
		return e.RunID, true
	}
	return "", false
}

// ExitCodeOf returns the exit status carried by a task failure, and false
// if err is not one.
func ExitCodeOf(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrTaskFailure {
		return e.ExitCode, true
	}
	return 0, false
}

func invalidTask(task, reason string) error {
	return &Error{Kind: ErrInvalidTask, Task: task, Reason: reason}
}
