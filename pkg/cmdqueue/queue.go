// Package cmdqueue provides the command queue that wires every sensor
// to every actuator.  A Queue is an unbounded FIFO of command words:
// producers never block, consumers block until a word is available.
// The same FIFO carries whole network records on the way out.
package cmdqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Dequeue once a queue has been closed and
// every word on it has been delivered.
var ErrClosed = errors.New("command queue closed")

// Queue is the FIFO of command words.
type Queue = FIFO[int32]

// FIFO is safe for any number of concurrent producers and consumers.
type FIFO[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// ready holds at most one wakeup.  A consumer that takes an item
	// and leaves more behind passes the wakeup on.
	ready chan struct{}
	done  chan struct{}
}

// New returns an empty command queue.
func New() *Queue {
	return NewFIFO[int32]()
}

// NewFIFO returns an empty FIFO.
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue appends a word to the tail of the queue and wakes a waiting
// consumer.  It never blocks and always succeeds, including after
// Close.
func (q *FIFO[T]) Enqueue(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

// Dequeue blocks until a word is available and returns it.  After
// Close it drains whatever remains and then returns ErrClosed.
func (q *FIFO[T]) Dequeue() (T, error) {
	return q.DequeueContext(context.Background())
}

// DequeueContext is Dequeue with cancellation.
func (q *FIFO[T]) DequeueContext(ctx context.Context) (T, error) {
	for {
		v, ok, closed := q.take()
		if ok {
			return v, nil
		}
		if closed {
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryDequeue removes the head if there is one.  Periodic consumers use
// this instead of pairing HasItem with Dequeue.
func (q *FIFO[T]) TryDequeue() (T, bool) {
	v, ok, _ := q.take()
	return v, ok
}

// HasItem reports whether a word is waiting.  The answer may be stale
// by the time the caller acts on it.
func (q *FIFO[T]) HasItem() bool {
	return q.Len() > 0
}

// Len returns the number of queued words.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close releases every consumer blocked in Dequeue.  Words still on
// the queue continue to be delivered.  Closing twice is harmless.
func (q *FIFO[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Closed reports whether Close has been called.
func (q *FIFO[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *FIFO[T]) take() (T, bool, bool) {
	q.mu.Lock()
	if q.head == len(q.items) {
		closed := q.closed
		q.mu.Unlock()
		var zero T
		return zero, false, closed
	}

	v := q.items[q.head]
	q.head++
	more := q.head < len(q.items)
	if !more {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.mu.Unlock()

	if more {
		q.signal()
	}
	return v, true, false
}

func (q *FIFO[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
