// Package resilience retries region downloads that fail for transient
// reasons.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Retry policy defaults for region downloads. The delay doubles after each
// retry up to maxBackoff and is spread by ±jitter of itself.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 500 * time.Millisecond

	maxBackoff = 30 * time.Second
	jitter     = 0.25
)

// Policy retries a download while IsTransient reports its error as
// retryable.
type Policy struct {
	// Attempts is the total number of tries, the first included.
	Attempts int
	// Backoff is the delay before the first retry.
	Backoff time.Duration
	// OnRetry, when set, is called before each retry sleep.
	OnRetry func(retry int, err error)
}

// NewPolicy returns a Policy, substituting the defaults for non-positive
// values. It maps the fetch.max_attempts and fetch.initial_backoff_ms keys.
func NewPolicy(attempts int, backoff time.Duration) Policy {
	p := Policy{Attempts: attempts, Backoff: backoff}
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultBackoff
	}
	return p
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or
// ctx is done, and returns the last error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	onRetry := p.OnRetry
	p = NewPolicy(p.Attempts, p.Backoff)

	for retry := 0; ; retry++ {
		err := fn(ctx)
		if err == nil || retry+1 >= p.Attempts || ctx.Err() != nil || !IsTransient(err) {
			return err
		}
		if onRetry != nil {
			onRetry(retry+1, err)
		}

		t := time.NewTimer(p.delay(retry, rand.Float64()))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// delay is the sleep before retry n (zero-based); r in [0, 1) picks the
// jitter.
func (p Policy) delay(n int, r float64) time.Duration {
	d := p.Backoff
	for i := 0; i < n && d < maxBackoff; i++ {
		d *= 2
	}
	d = min(d, maxBackoff)
	return d + time.Duration((2*r-1)*jitter*float64(d))
}

// RetryLogger returns an OnRetry hook that logs each retry of a download
// from source.
func RetryLogger(source string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("retrying region download",
			zap.String("source", source),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
