package ingest

import (
	"time"

	"github.com/okian/globepins/pkg/logger"
)

// Batch limits.
const (
	DefaultBatchSize = 200
	MaxBatchSize     = 400
)

// Option applies a configuration option to the Ingestor.
type Option func(*Ingestor)

// WithBatchSize sets rows per commit, clamped to [1, MaxBatchSize].
func WithBatchSize(n int) Option {
	return func(in *Ingestor) {
		in.batchSize = min(max(n, 1), MaxBatchSize)
	}
}

// WithInterBatchDelay sets the pause enforced between batch commits.
func WithInterBatchDelay(d time.Duration) Option {
	return func(in *Ingestor) {
		if d >= 0 {
			in.delay = d
		}
	}
}

// WithRetryPolicy sets the quota retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(in *Ingestor) {
		in.retry = p.normalized()
	}
}

// WithLogger sets the ingestor logger.
func WithLogger(l logger.Logger) Option {
	return func(in *Ingestor) {
		if l != nil {
			in.log = l
		}
	}
}
