package docstore

import (
	"context"
	"sync"
)

// subscription holds at most one pending snapshot; a newer one replaces it
// and an older one is dropped.
type subscription struct {
	q       Query
	ch      chan Snapshot
	done    chan struct{}
	release func(*subscription)

	mu     sync.Mutex
	closed bool
	last   uint64
}

func newSubscription(q Query, release func(*subscription)) *subscription {
	return &subscription{
		q:       q,
		ch:      make(chan Snapshot, 1),
		done:    make(chan struct{}),
		release: release,
	}
}

// closeOn closes the subscription when ctx ends.
func (s *subscription) closeOn(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

func (s *subscription) C() <-chan Snapshot { return s.ch }

func (s *subscription) offer(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || snap.Version < s.last {
		return
	}
	s.last = snap.Version
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscription) Close() {
	s.release(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}
