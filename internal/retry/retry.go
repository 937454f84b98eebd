// Package retry provides the generic exponential-backoff helper shared by
// the Feed Client and the Ingestion Coordinator. Grounded directly on the
// teacher's pkg/adsb/retry.go, generalized out of that package since both
// C1 (feed fetch) and C6 (coordinator-level FeedUnavailable backoff, per
// §4.6) need it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Config configures exponential backoff. Defaults throughout this service
// match §4.1's "base 1 s, factor 2, cap 5 min".
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Retryable reports whether an error returned by fn should drive
	// another attempt. A nil Retryable retries every error, matching the
	// historical behavior. Callers whose errors carry a taxonomy (e.g.
	// internal/errs) should set this so a non-retryable error bails out
	// immediately instead of burning the whole backoff schedule on
	// something that can never succeed by simply trying again.
	Retryable func(error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2.0,
	}
}

// RetryAfterAware is implemented by errors that carry an upstream-supplied
// retry delay (e.g. HTTP 429 Retry-After), so backoff can honor it
// instead of the computed exponential delay.
type RetryAfterAware interface {
	RetryAfter() time.Duration
}

// WithBackoffResult runs fn, retrying on error with exponential backoff
// up to cfg.MaxRetries times, and returns the last result/error pair.
func WithBackoffResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		result = res
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return result, err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		nextDelay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if nextDelay > cfg.MaxDelay {
			nextDelay = cfg.MaxDelay
		}
		var ra RetryAfterAware
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			nextDelay = ra.RetryAfter()
		}
		delay = nextDelay
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// WithBackoff is the no-result variant.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	_, err := WithBackoffResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
