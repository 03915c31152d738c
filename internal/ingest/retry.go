package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/pkg/metrics"
)

// RetryPolicy bounds how a quota-limited commit is retried: delays start at
// Base, double per attempt, never exceed Max, and at most Retries retries
// follow the first attempt.
type RetryPolicy struct {
	Base    time.Duration
	Max     time.Duration
	Retries int
}

// DefaultRetryPolicy waits 500ms, 1s, 2s, 4s, 8s before giving up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 500 * time.Millisecond, Max: 8 * time.Second, Retries: 5}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Base <= 0 {
		p.Base = DefaultRetryPolicy().Base
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	return p
}

// Backoff returns a fresh backoff following the policy.
func (p RetryPolicy) Backoff() retry.Backoff {
	p = p.normalized()
	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(p.Max, b)
	return retry.WithMaxRetries(uint64(p.Retries), b)
}

// Schedule lists the delays the policy waits between attempts.
func (p RetryPolicy) Schedule() []time.Duration {
	b := p.Backoff()
	var out []time.Duration
	for {
		d, stop := b.Next()
		if stop {
			return out
		}
		out = append(out, d)
	}
}

// do runs fn, retrying only quota errors. When retries run out the last
// quota error is returned.
func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.Backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, errkind.ErrQuotaExceeded) {
			metrics.RecordIngestRetry()
			return retry.RetryableError(err)
		}
		return err
	})
}
