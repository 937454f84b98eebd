package db

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vatpac/stats-ingestor/internal/config"
	"github.com/vatpac/stats-ingestor/internal/errs"
)

// ReconnectWithRetry attempts to (re)connect with exponential backoff,
// capped at 60s. Used at startup and whenever EnsureConnection finds the
// pool unreachable.
func ReconnectWithRetry(ctx context.Context, cfg config.Database, log zerolog.Logger, maxRetries int, initialDelay time.Duration) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Info().Int("attempt", attempt).Msg("database connection attempt")

		d, err := Connect(ctx, cfg, log)
		if err == nil {
			log.Info().Msg("database connected")
			return d, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, errs.PersistenceFatal("db.ReconnectWithRetry", err)
		}

		log.Warn().Err(err).Dur("retry_in", delay).Msg("database connection failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection checks that d is alive, reconnecting if it is nil or
// unreachable.
func EnsureConnection(ctx context.Context, d *DB, cfg config.Database, log zerolog.Logger) (*DB, error) {
	if d == nil {
		return ReconnectWithRetry(ctx, cfg, log, 3, time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.PingContext(pingCtx); err != nil {
		log.Warn().Err(err).Msg("database connection lost, reconnecting")
		d.Close()
		return ReconnectWithRetry(ctx, cfg, log, 3, time.Second)
	}
	return d, nil
}

// HealthCheck reports whether d is reachable and answering queries.
func HealthCheck(ctx context.Context, d *DB) bool {
	if d == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.PingContext(pingCtx); err != nil {
		return false
	}
	var result int
	if err := d.QueryRowContext(pingCtx, "SELECT 1").Scan(&result); err != nil {
		return false
	}
	return result == 1
}

var retryableErrorSubstrings = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
}

// isConnectionError reports whether err looks like a transient
// connection failure worth retrying, using stdlib strings matching
// instead of the hand-rolled substring scan this helper used to have.
func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryableErrorSubstrings {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry executes operation, retrying on transient connection errors
// with linear backoff up to maxRetries.
func WithRetry(ctx context.Context, log zerolog.Logger, operation func() error, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", wait).Msg("database operation failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}
