package source

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retry-with-backoff loop wrapped around every
// outbound backend call. Only transient failures (rate limit, 5xx, network)
// are retried; terminal, not-found and unsupported failures surface
// immediately.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// OnRetry, when set, is invoked before each retry sleep. Adapters use
	// it to count retries in metrics.
	OnRetry func(err error, wait time.Duration)
}

// DefaultRetryPolicy matches the backend API guidance: a few attempts with
// exponential spacing, capped well below typical caller timeouts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Do runs op until it succeeds, fails terminally, exhausts the attempt
// budget, or ctx is cancelled.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, wait)
		}
	}

	return backoff.RetryNotify(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx), notify)
}
