// Package queue provides the bounded mailbox that feeds single-owner loops.
package queue

import (
	"context"
	"sync"

	"github.com/okian/globepins/pkg/metrics"
)

const defaultCapacity = 256

// Queue provides enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds m without blocking. It returns false when the queue is
	// full or closed.
	Enqueue(ctx context.Context, m T) bool

	// Publish adds m, waiting for room until ctx ends.
	Publish(ctx context.Context, m T) error

	// Dequeue returns the channel messages are delivered on. It is closed
	// when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	messages chan T
	capacity int
	name     string

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	cfg := config{capacity: defaultCapacity, name: "mailbox"}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := &InMemoryQueue[T]{
		messages: make(chan T, cfg.capacity),
		capacity: cfg.capacity,
		name:     cfg.name,
		done:     make(chan struct{}),
	}
	metrics.UpdateMailboxCapacity(q.capacity)
	metrics.UpdateMailboxSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, m T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return false
	}
	select {
	case q.messages <- m:
		q.accepted()
		return true
	case <-ctx.Done():
		q.reject("context_cancelled")
		return false
	default:
		q.reject("queue_full")
		return false
	}
}

// Publish implements Queue.Publish. Close wakes blocked publishers.
func (q *InMemoryQueue[T]) Publish(ctx context.Context, m T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return ErrClosed
	}
	select {
	case q.messages <- m:
		q.accepted()
		return nil
	case <-ctx.Done():
		q.reject("context_cancelled")
		return ctx.Err()
	case <-q.done:
		q.reject("closed")
		return ErrClosed
	}
}

func (q *InMemoryQueue[T]) accepted() {
	metrics.RecordMailboxEnqueue()
	metrics.UpdateMailboxSize(len(q.messages))
}

func (q *InMemoryQueue[T]) reject(reason string) {
	metrics.RecordMailboxEnqueueError()
	metrics.RecordErrorByComponent(q.name, reason)
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				metrics.RecordMailboxDequeue()
				metrics.UpdateMailboxSize(len(q.messages))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued messages.
func (q *InMemoryQueue[T]) Len(ctx context.Context) int {
	return len(q.messages)
}

// Close stops accepting messages. Already queued messages are still
// delivered.
func (q *InMemoryQueue[T]) Close() error {
	// Blocked publishers hold the read lock; wake them first.
	q.doneOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
