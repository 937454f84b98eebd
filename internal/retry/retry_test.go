package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithBackoffResultSucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := WithBackoffResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("got %d, want 42", result)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestWithBackoffResultRetriesThenSucceeds(t *testing.T) {
	calls := 0
	result, err := WithBackoffResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 7 {
		t.Fatalf("got %d, want 7", result)
	}
	if calls != 3 {
		t.Fatalf("got %d calls, want 3", calls)
	}
}

func TestWithBackoffResultExhaustsRetries(t *testing.T) {
	calls := 0
	cfg := fastConfig()
	_, err := WithBackoffResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != cfg.MaxRetries+1 {
		t.Fatalf("got %d calls, want %d", calls, cfg.MaxRetries+1)
	}
}

func TestWithBackoffResultHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialDelay = time.Hour // would hang if cancellation weren't honored

	calls := 0
	_, err := WithBackoffResult(ctx, cfg, func() (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want exactly 1 before the cancelled sleep aborted retrying", calls)
	}
}

func TestWithBackoffResultBailsOnNonRetryable(t *testing.T) {
	calls := 0
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return false }

	_, err := WithBackoffResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want exactly 1 — a non-retryable error must not drive backoff", calls)
	}
}

type retryAfterErr struct{ d time.Duration }

func (e retryAfterErr) Error() string          { return "rate limited" }
func (e retryAfterErr) RetryAfter() time.Duration { return e.d }

func TestWithBackoffResultHonorsRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	cfg := fastConfig()
	cfg.MaxRetries = 1

	_, err := WithBackoffResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, retryAfterErr{d: 20 * time.Millisecond}
		}
		return 1, nil
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 15*time.Millisecond {
		t.Fatalf("expected the retry to wait at least the RetryAfter duration, elapsed=%v", elapsed)
	}
}
