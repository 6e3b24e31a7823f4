// Package backoff wraps fallible operations in bounded exponential-backoff
// retries. Waits go through the context-aware timer of the underlying
// library, so a retrying goroutine never blocks the scheduler.
package backoff

import (
	"context"
	"time"

	backoffv4 "github.com/cenkalti/backoff/v4"
)

const (
	// DefaultInitialInterval is the wait before the first retry.
	DefaultInitialInterval = 5 * time.Second
	// DefaultMultiplier doubles the wait after every attempt.
	DefaultMultiplier = 2
	// DefaultMaxInterval caps the wait between attempts.
	DefaultMaxInterval = 10 * time.Minute
	// DefaultMaxRetries bounds the total number of retries.
	DefaultMaxRetries = 5000
)

// Config parameterizes the retry policy.
type Config struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultConfig returns the policy used against degraded upstream nodes:
// patient enough to ride out long outages, bounded so a permanently broken
// upstream still surfaces as an error.
func DefaultConfig() *Config {
	return &Config{
		InitialInterval: DefaultInitialInterval,
		Multiplier:      DefaultMultiplier,
		MaxInterval:     DefaultMaxInterval,
		MaxRetries:      DefaultMaxRetries,
	}
}

func (c *Config) backOff(ctx context.Context) backoffv4.BackOff {
	exp := backoffv4.NewExponentialBackOff()
	exp.InitialInterval = c.InitialInterval
	exp.Multiplier = c.Multiplier
	exp.MaxInterval = c.MaxInterval
	exp.MaxElapsedTime = 0
	return backoffv4.WithContext(backoffv4.WithMaxRetries(exp, c.MaxRetries), ctx)
}

// Retry runs op until it succeeds, returns a permanent error, the retry
// budget is exhausted, or ctx is done. On exhaustion the last error is
// returned.
func (c *Config) Retry(ctx context.Context, op func() error) error {
	return backoffv4.Retry(op, c.backOff(ctx))
}

// RetryNotify behaves like Retry and additionally invokes notify with the
// failure and the upcoming wait before every retry.
func (c *Config) RetryNotify(ctx context.Context, op func() error, notify func(err error, next time.Duration)) error {
	return backoffv4.RetryNotify(op, c.backOff(ctx), notify)
}

// Retry runs op under the default policy.
func Retry(ctx context.Context, op func() error) error {
	return DefaultConfig().Retry(ctx, op)
}

// RetryNotify runs op under the default policy with retry notifications.
func RetryNotify(ctx context.Context, op func() error, notify func(err error, next time.Duration)) error {
	return DefaultConfig().RetryNotify(ctx, op, notify)
}

// Permanent marks err as non-retryable: the harness stops immediately and
// returns it. Used for semantic failures where retrying cannot help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoffv4.Permanent(err)
}
