package candy

import (
	"fmt"
	"sync/atomic"

	"github.com/deixis/candy/internal/runner"
)

// pending counts lines that readers have registered but the dispatcher has
// not yet handled, per stream.
type pending struct {
	stdout atomic.Int64
	stderr atomic.Int64
}

func (p *pending) counter(s Stream) *atomic.Int64 {
	if s == Stderr {
		return &p.stderr
	}
	return &p.stdout
}

func (p *pending) add(s Stream)  { p.counter(s).Add(1) }
func (p *pending) done(s Stream) { p.counter(s).Add(-1) }

func (p *pending) total() int {
	return int(p.stdout.Load() + p.stderr.Load())
}

// resultSlot holds the early-return outcome. The first write wins.
type resultSlot[T any] struct {
	p atomic.Pointer[outcome[T]]
}

func (s *resultSlot[T]) set(o outcome[T]) bool {
	return s.p.CompareAndSwap(nil, &o)
}

func (s *resultSlot[T]) get() *outcome[T] {
	return s.p.Load()
}

// dispatchReport is sent once by the dispatcher when it stops consuming.
type dispatchReport struct {
	stdout  []string
	stderr  []string
	handled int
}

// dispatcher consumes the merged line stream on a single goroutine.
type dispatcher[T any] struct {
	task    string
	handler Handler[T]
	queue   *runner.Queue[Log]
	pending *pending
	slot    *resultSlot[T]
	done    chan dispatchReport // capacity 1
}

func newDispatcher[T any](task string, handler Handler[T], queue *runner.Queue[Log], p *pending, slot *resultSlot[T]) *dispatcher[T] {
	return &dispatcher[T]{
		task:    task,
		handler: handler,
		queue:   queue,
		pending: p,
		slot:    slot,
		done:    make(chan dispatchReport, 1),
	}
}

// run consumes until the queue is closed and drained, or until the handler
// returns early or panics. Every received line is buffered before the
// handler sees it.
func (d *dispatcher[T]) run() {
	var rep dispatchReport
	defer func() { d.done <- rep }()

	for l := range d.queue.Out() {
		d.pending.done(l.Stream)
		if l.Stream == Stderr {
			rep.stderr = append(rep.stderr, l.Line)
		} else {
			rep.stdout = append(rep.stdout, l.Line)
		}
		rep.handled++

		b, err := d.handle(l)
		if err != nil {
			d.slot.set(outcome[T]{err: err, poisoned: true})
			d.queue.Abandon()
			return
		}
		if b.IsEarlyReturn() {
			d.slot.set(outcome[T]{value: b.value, err: b.err})
			d.queue.Abandon()
			return
		}
	}
}

// handle invokes the handler, turning a panic into ErrPoisonedLog.
func (d *dispatcher[T]) handle(l Log) (b Behavior[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Kind:   ErrPoisonedLog,
				Task:   d.task,
				Reason: fmt.Sprintf("log handler panicked on %s line: %v", l.Stream, r),
			}
		}
	}()
	return d.handler(l), nil
}

// wait blocks until the dispatcher has stopped and returns its report.
func (d *dispatcher[T]) wait() dispatchReport {
	return <-d.done
}
