package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue[string](WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, "snapshot-1") {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	msg := <-q.Dequeue(ctx)
	if msg != "snapshot-1" {
		t.Errorf("expected snapshot-1, got %v", msg)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(2), WithName("test"))
	ctx := context.Background()

	if !q.Enqueue(ctx, 1) || !q.Enqueue(ctx, 2) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, 3) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_PublishWaitsForRoom(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(1))
	ctx := context.Background()
	if err := q.Publish(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	published := make(chan error, 1)
	go func() { published <- q.Publish(ctx, 2) }()

	select {
	case err := <-published:
		t.Fatalf("publish returned before room was made: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	out := q.Dequeue(ctx)
	if got := <-out; got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if err := <-published; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := <-out; got != 2 {
		t.Errorf("expected 2, got %d", got)
	}

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	full := NewInMemoryQueue[int](WithCapacity(1))
	_ = full.Publish(ctx, 1)
	if err := full.Publish(tctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_CloseWakesPublishers(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(1))
	ctx := context.Background()
	_ = q.Publish(ctx, 1)

	published := make(chan error, 1)
	go func() { published <- q.Publish(ctx, 2) }()
	time.Sleep(10 * time.Millisecond)

	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	select {
	case err := <-published:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after close")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue[string](WithCapacity(100))
	ctx := context.Background()
	const producers, perProducer = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if err := q.Publish(ctx, fmt.Sprintf("m%d_%d", id, j)); err != nil {
					t.Errorf("publish failed: %v", err)
					return
				}
			}
		}(i)
	}

	seen := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range q.Dequeue(ctx) {
			seen[m] = true
		}
	}()

	wg.Wait()
	_ = q.Close()
	<-done

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d messages, got %d", producers*perProducer, len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue[string](WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, "a")
	q.Enqueue(ctx, "b")
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, "c") {
		t.Error("expected enqueue to fail after closing")
	}

	var drained []string
	for m := range q.Dequeue(ctx) {
		drained = append(drained, m)
	}
	if len(drained) != 2 {
		t.Errorf("expected queued messages to drain, got %v", drained)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
