package candy

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deixis/candy/internal/runner"
)

// Run starts the Task and applies handler to each line it prints.
//
// If the handler returns Passthrough for every line, Run returns an Output
// of kind Complete holding all stdout and stderr lines. If it returns
// EarlyReturn, the handler is not called again and Run returns an Output of
// kind EarlyReturned with the lines seen so far and the handler's value; an
// EarlyReturnErr is returned as an error wrapping ErrEarlyReturn.
//
// Either way Run waits for the process to exit and for every line already
// read to be handled or discarded. A non-zero exit status is reported as
// ErrTaskFailure, overriding any early return.
//
// Run logs to the zerolog.Logger attached to ctx, if any. A context that is
// already done prevents the spawn; cancelling it later does not signal the
// process.
func Run[T any](ctx context.Context, t *Task, handler Handler[T]) (*Output[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := &execution[T]{
		task:    t,
		log:     zerolog.Ctx(ctx).With().Str("task", t.fullCommand).Logger(),
		queue:   runner.NewQueue[Log](),
		pending: &pending{},
		slot:    &resultSlot[T]{},
		begun:   time.Now(),
	}
	return e.run(handler)
}

// execution holds the state of one Run call.
type execution[T any] struct {
	task    *Task
	log     zerolog.Logger
	state   State
	queue   *runner.Queue[Log]
	pending *pending
	slot    *resultSlot[T]
	begun   time.Time
}

func (e *execution[T]) transition(to State) {
	ev := e.log.Debug().Stringer("from", e.state).Stringer("to", to)
	if to.Terminal() {
		ev = ev.Dur("elapsed", time.Since(e.begun))
	}
	ev.Msg("run state")
	e.state = to
}

func (e *execution[T]) run(handler Handler[T]) (*Output[T], error) {
	t := e.task

	// The dispatcher must be consuming before the first line can arrive.
	d := newDispatcher(t.fullCommand, handler, e.queue, e.pending, e.slot)
	go d.run()

	proc, err := runner.Start(runner.Spec{
		Bin:  t.bin,
		Args: t.args,
		Dir:  t.currentDir,
		Env:  t.envs,
	})
	if err != nil {
		e.queue.Close()
		d.wait()
		e.transition(StateFailed)
		return nil, &Error{Kind: ErrCouldNotSpawn, Task: t.fullCommand, Err: err}
	}
	e.log = e.log.With().Str("run_id", proc.RunID).Logger()
	e.transition(StateSpawned)
	e.log.Debug().Int("pid", proc.PID()).Str("dir", t.currentDir).Msg("spawned")

	e.transition(StateStreaming)
	var readers sync.WaitGroup
	readers.Add(2)
	go e.read(&readers, proc.Stdout, Stdout)
	go e.read(&readers, proc.Stderr, Stderr)

	// Pipes must hit EOF before Wait closes them.
	readers.Wait()
	exitCode, waitErr := proc.Wait()

	e.transition(StateDraining)
	e.queue.Close()
	rep := d.wait()
	discarded := e.pending.total()
	duration := time.Since(proc.Started)

	e.log.Debug().
		Int("exit_code", exitCode).
		Int("handled", rep.handled).
		Int("discarded", discarded).
		Dur("duration", duration).
		Msg("drained")

	if waitErr != nil {
		e.transition(StateFailed)
		return nil, &Error{Kind: ErrCouldNotWait, Task: t.fullCommand, RunID: proc.RunID, Err: waitErr}
	}

	if exitCode != 0 {
		e.transition(StateFailed)
		if e.slot.get() != nil {
			e.log.Debug().Msg("discarding early return after task failure")
		}
		return nil, &Error{Kind: ErrTaskFailure, Task: t.fullCommand, ExitCode: exitCode, RunID: proc.RunID}
	}

	out := &Output[T]{
		RunID:       proc.RunID,
		Kind:        Complete,
		ExitCode:    exitCode,
		StdoutLines: rep.stdout,
		StderrLines: rep.stderr,
		Discarded:   discarded,
		Duration:    duration,
	}
	if out.StdoutLines == nil {
		out.StdoutLines = []string{}
	}
	if out.StderrLines == nil {
		out.StderrLines = []string{}
	}

	o := e.slot.get()
	if o == nil {
		e.transition(StateCompleted)
		return out, nil
	}

	switch {
	case o.poisoned:
		e.transition(StateFailed)
		if pe, ok := o.err.(*Error); ok {
			pe.RunID = proc.RunID
		}
		return nil, o.err
	case o.err != nil:
		e.transition(StateFailed)
		return nil, &Error{Kind: ErrEarlyReturn, Task: t.fullCommand, RunID: proc.RunID, Err: o.err}
	}

	e.transition(StateEarlyReturned)
	out.Kind = EarlyReturned
	out.Value = o.value
	return out, nil
}

// read forwards every line of r to the dispatcher. Each line is counted as
// pending before it is pushed so the count never under-reports.
func (e *execution[T]) read(wg *sync.WaitGroup, r io.Reader, stream Stream) {
	defer wg.Done()
	runner.ScanLines(r, e.task.maxLine, func(line string) {
		e.pending.add(stream)
		e.queue.Push(Log{Stream: stream, Line: line})
	})
}
