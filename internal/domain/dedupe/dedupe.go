// Package dedupe tracks canonical keys that were already emitted so merged
// views and search results never carry the same city twice.
package dedupe

import "sync"

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already seen and records it if not.
	SeenAndRecord(key string) bool
}

// keySet is a set of keys safe for concurrent use.
type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates an empty Deduper.
func New(opts ...Option) Deduper {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &keySet{keys: make(map[string]struct{}, cfg.capacity)}
}

func (s *keySet) SeenAndRecord(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return true
	}
	s.keys[key] = struct{}{}
	return false
}
