// Package retry runs an operation a bounded number of times, sleeping on an
// exponential schedule between attempts that fail with a retryable error.
package retry

import (
	"context"
	"time"
)

const DefaultMaxAttempts = 3

// Classifier reports whether err should be retried and the minimum delay the
// callee asked for (zero when it gave no hint).
type Classifier func(err error) (retryable bool, floor time.Duration)

// Backoff returns the delay before retry number attempt (0-based).
type Backoff func(attempt int) time.Duration

// Exponential yields base * 2^attempt.
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}

type Options struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int
	Backoff     Backoff
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do calls op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is returned as-is. No sleep happens
// after the final attempt.
func Do[T any](ctx context.Context, opts Options, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var (
		zero T
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		var v T
		v, err = op(ctx)
		if err == nil {
			return v, nil
		}
		if classify == nil {
			return zero, err
		}
		retryable, floor := classify(err)
		if !retryable || attempt == attempts-1 {
			return zero, err
		}

		var delay time.Duration
		if opts.Backoff != nil {
			delay = opts.Backoff(attempt)
		}
		if floor > delay {
			delay = floor
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
	return zero, err
}

// Sleep waits for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
