package retry

import (
	"context"
	"time"
)

// DefaultUnit is the backoff base unit.
const DefaultUnit = time.Second

// Config contains retry parameters.
type Config struct {
	// Attempts is the total number of tries. Values below 1 mean one try.
	Attempts int

	// Unit scales the backoff. Zero means DefaultUnit.
	Unit time.Duration
}

func (c Config) attempts() int {
	return max(c.Attempts, 1)
}

func (c Config) unit() time.Duration {
	if c.Unit <= 0 {
		return DefaultUnit
	}
	return c.Unit
}

// Func is one attempt. attempt is 1-based.
type Func func(ctx context.Context, attempt int) error

// ShouldRetryFunc determines if an error should trigger a retry.
type ShouldRetryFunc func(error) bool

// OnRetryFunc is called before sleeping ahead of the next attempt.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Options contains optional retry behavior.
type Options struct {
	// ShouldRetry decides whether err is retryable. Nil retries everything.
	ShouldRetry ShouldRetryFunc

	// OnRetry is called before each wait.
	OnRetry OnRetryFunc

	// Sleeper waits between attempts. Nil uses TimerSleeper.
	Sleeper Sleeper
}

// Do calls fn until it returns nil, returns a non-retryable error, or the
// attempts are used up. The last error is returned.
func Do(ctx context.Context, cfg Config, fn Func, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}

	attempts := cfg.attempts()
	unit := cfg.unit()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if opts.ShouldRetry != nil && !opts.ShouldRetry(lastErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		backoff := Backoff(attempt, unit)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr, backoff)
		}
		if err := sleeper.Sleep(ctx, backoff); err != nil {
			return lastErr
		}
	}

	return lastErr
}
