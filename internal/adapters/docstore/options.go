package docstore

import (
	"context"
	"time"

	"github.com/okian/globepins/pkg/logger"
)

// FaultFunc is consulted before a write is applied. A non-nil error aborts the
// write; op is "merge_set", "update" or "commit".
type FaultFunc func(ctx context.Context, op string, ops []Op) error

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithFault installs a fault hook on the MemStore.
func WithFault(f FaultFunc) MemOption {
	return func(s *MemStore) {
		s.fault = f
	}
}

// WithMemLogger sets the MemStore logger.
func WithMemLogger(l logger.Logger) MemOption {
	return func(s *MemStore) {
		if l != nil {
			s.log = l
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithCollection sets the table and notification channel name.
func WithCollection(name string) PostgresOption {
	return func(s *PostgresStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithListenerBackoff sets the reconnect bounds of the LISTEN connection.
func WithListenerBackoff(minDelay, maxDelay time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if minDelay > 0 && maxDelay >= minDelay {
			s.minReconnect = minDelay
			s.maxReconnect = maxDelay
		}
	}
}

// WithPostgresLogger sets the PostgresStore logger.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.log = l
		}
	}
}
