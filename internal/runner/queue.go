package runner

import "sync"

// Queue is an unbounded multi-producer, single-consumer queue. Push never
// blocks on the consumer: a pump goroutine buffers values between the
// producers and Out.
type Queue[T any] struct {
	in        chan T
	out       chan T
	abandoned chan struct{}

	closeOnce   sync.Once
	abandonOnce sync.Once
}

// NewQueue creates a queue and starts its pump.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		in:        make(chan T),
		out:       make(chan T),
		abandoned: make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push enqueues v. It must not be called after Close.
func (q *Queue[T]) Push(v T) {
	q.in <- v
}

// Out returns the channel the consumer receives from. It is closed once
// the queue is closed and every buffered value has been delivered.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Close signals that no more values will be pushed.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.in) })
}

// Abandon tells the queue the consumer has stopped. Buffered and future
// values are dropped; Push keeps accepting so producers never block.
func (q *Queue[T]) Abandon() {
	q.abandonOnce.Do(func() { close(q.abandoned) })
}

func (q *Queue[T]) pump() {
	defer close(q.out)

	var buf []T
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan T
		var next T
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- next:
			var zero T
			buf[0] = zero
			buf = buf[1:]
		case <-q.abandoned:
			// Keep draining producers until Close, discarding everything.
			if in != nil {
				for range in {
				}
			}
			return
		}
	}
}
