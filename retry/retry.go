package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type config struct {
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
}

// Option customizes retry behavior
type Option func(*config)

// WithMaxRetries sets how many times a failed call is retried. The call is
// always attempted at least once, so WithMaxRetries(0) still runs it.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBaseWait sets the initial backoff interval
func WithBaseWait(d time.Duration) Option {
	return func(c *config) { c.baseWait = d }
}

// WithMaxWait caps the backoff interval
func WithMaxWait(d time.Duration) Option {
	return func(c *config) { c.maxWait = d }
}

// Do invokes fn, retrying with exponential backoff while the returned error
// is recoverable (per IsRecoverable) and the context remains live. The last
// error is returned when retries are exhausted.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	cfg := &config{
		maxRetries: 3,
		baseWait:   time.Millisecond * 500,
		maxWait:    time.Second * 30,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.baseWait
	b.MaxInterval = cfg.maxWait
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.maxRetries)), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
