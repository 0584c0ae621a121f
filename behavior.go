package candy

// Handler is called once for every line a Task prints, in the order the
// lines are received, from a single goroutine. It decides whether the run
// keeps observing output or returns early.
//
// A Handler must not block indefinitely.
type Handler[T any] func(Log) Behavior[T]

// Behavior is the decision a Handler returns for one line.
type Behavior[T any] struct {
	early bool
	value T
	err   error
}

// Passthrough keeps the run observing output.
func Passthrough[T any]() Behavior[T] {
	return Behavior[T]{}
}

// EarlyReturn stops observing output and makes Run return v once the
// process has exited successfully. It does not stop the process.
func EarlyReturn[T any](v T) Behavior[T] {
	return Behavior[T]{early: true, value: v}
}

// EarlyReturnErr stops observing output and makes Run return err, wrapped
// with ErrEarlyReturn, once the process has exited successfully.
func EarlyReturnErr[T any](err error) Behavior[T] {
	return Behavior[T]{early: true, err: err}
}

// IsEarlyReturn reports whether b requests an early return.
func (b Behavior[T]) IsEarlyReturn() bool { return b.early }

// outcome is the early-return result stored by the dispatcher.
type outcome[T any] struct {
	value    T
	err      error
	poisoned bool // err is an ErrPoisonedLog raised by the dispatcher itself
}
