// Package worker runs the single-owner loop that drains a mailbox.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/globepins/pkg/logger"
	"github.com/okian/globepins/pkg/metrics"
)

// Handler processes one message. Errors are logged; the loop keeps going.
type Handler[T any] interface {
	Handle(ctx context.Context, m T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(ctx context.Context, m T) error

// Handle implements Handler.
func (f HandlerFunc[T]) Handle(ctx context.Context, m T) error { return f(ctx, m) }

// Queue defines how workers receive messages.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker consumes a queue until it is closed, ctx ends or Shutdown is called.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is the only goroutine that touches the state owned by its
// handler.
type InMemoryWorker[T any] struct {
	queue   Queue[T]
	handler Handler[T]
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker[T any](queue Queue[T], handler Handler[T], opts ...Option) *InMemoryWorker[T] {
	cfg := config{name: "worker", logger: logger.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryWorker[T]{
		queue:    queue,
		handler:  handler,
		name:     cfg.name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   cfg.logger.Named(cfg.name),
	}
}

// Run starts the worker loop. It returns when the queue is drained and
// closed, ctx is cancelled or Shutdown is called.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			w.process(ctx, m)
		}
	}
}

func (w *InMemoryWorker[T]) process(ctx context.Context, m T) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent(w.name, "panic")
			w.logger.Error(ctx, "handler panicked", logger.Any("panic", r))
		}
	}()
	if err := w.handler.Handle(ctx, m); err != nil {
		metrics.RecordErrorByComponent(w.name, "handler_error")
		w.logger.Error(ctx, "error processing message", logger.Error(err))
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker[T]) Done() <-chan struct{} { return w.done }

// Shutdown stops the loop and waits for it to exit.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// ShutdownTimeout is the default grace period callers give Shutdown.
const ShutdownTimeout = 5 * time.Second
