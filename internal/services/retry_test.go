package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tubelens/internal/services"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := services.RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: noSleep}
	calls := 0
	var retried []int
	got, err := services.Retry(context.Background(), policy, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt == 0 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Fatalf("unexpected retry notifications: %v", retried)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	policy := services.RetryPolicy{Attempts: 2, Sleep: noSleep}
	calls := 0
	_, err := services.Retry(context.Background(), policy, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("attempt failed")
	}, nil)
	if err == nil || err.Error() != "attempt failed" {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _ = services.Retry(context.Background(), services.RetryPolicy{}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("nope")
	}, nil)
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetryDelayBackoff(t *testing.T) {
	policy := services.RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for attempt, expected := range want {
		if got := policy.Delay(attempt); got != expected {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := services.Retry(ctx, services.RetryPolicy{Attempts: 3}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, nil
	}, nil)
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("expected cancellation before first call, got err=%v calls=%d", err, calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	policy := services.RetryPolicy{Attempts: 5, Sleep: noSleep}
	cause := errors.New("constraint failed")
	calls := 0
	_, err := services.Retry(context.Background(), policy, func(context.Context, int) (int, error) {
		calls++
		return 0, services.Permanent(cause)
	}, nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err != cause {
		t.Fatalf("expected the unwrapped cause, got %v", err)
	}
	if services.Permanent(nil) != nil {
		t.Fatal("Permanent(nil) must be nil")
	}
}
