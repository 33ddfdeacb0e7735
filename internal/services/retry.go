package services

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often a sub-stage may be attempted and how long to
// wait between attempts. Attempts counts the first try, so 1 means no retry.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Sleep overrides the wait between attempts; tests use it to avoid real delays.
	Sleep func(context.Context, time.Duration) error
}

// DefaultRetryPolicy allows one re-attempt after a short pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  2,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Delay returns the wait applied after the given zero-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Retry runs fn until it succeeds, the attempt budget is spent, or ctx ends.
// onRetry, when set, observes each failure that will be followed by another try.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) (T, error), onRetry func(attempt int, err error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		var stop permanentError
		if errors.As(err, &stop) {
			return zero, stop.err
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		if err := sleep(ctx, policy.Delay(attempt)); err != nil {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Retry returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
