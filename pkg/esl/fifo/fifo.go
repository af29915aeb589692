// Package fifo provides an unbounded FIFO queue with context-aware
// blocking receive, used for the event and reply pipelines of an
// event-socket connection.
package fifo

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrClosed is returned by Push and Pop once the queue has been closed.
var ErrClosed = errors.New("fifo: queue closed")

// Queue is an unbounded, goroutine-safe FIFO. A zero Queue is not usable;
// construct with New.
type Queue[T any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	wake   chan struct{}
	closed bool
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: queue.New(),
		wake:  make(chan struct{}),
	}
}

// Push appends v to the back of the queue and wakes any blocked Pop.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items.Add(v)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
	return nil
}

// Pop removes and returns the front element, blocking until one is
// available, the queue is closed, or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			v := q.items.Remove().(T)
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop removes and returns the front element without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return zero, false
	}
	return q.items.Remove().(T), true
}

// Len reports the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close marks the queue closed and wakes all blocked Pops. Elements already
// queued remain poppable; Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}
