// Package retry provides a bounded-attempt retry loop with backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/price-oracle/internal/logging"
)

// Config configures retry behavior
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// RateLimitWait is an extra fixed wait applied before the standard
	// backoff when IsRateLimited reports the failure was a rate limit.
	RateLimitWait time.Duration
	// IsRateLimited classifies errors as rate-limit responses. Optional.
	IsRateLimited func(error) bool
	// IsPermanent classifies errors that cannot succeed on retry.
	// A permanent error is returned immediately without further
	// attempts. Optional.
	IsPermanent func(error) bool
}

// DefaultConfig returns the default retry configuration.
// Pattern: 1s, 2s, 4s, capped at 30s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		RateLimitWait: 2 * time.Second,
	}
}

// Func is an operation that can be retried
type Func func(ctx context.Context, attempt int) error

// Do executes fn with bounded retries and exponential backoff.
// It returns nil on the first success, the context error if cancelled
// while waiting, and the last attempt's error once attempts are exhausted.
func Do(ctx context.Context, cfg *Config, fn Func) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempt": attempt,
				}).Debug("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if cfg.IsPermanent != nil && cfg.IsPermanent(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := backoffDelay(cfg, attempt)
		if cfg.IsRateLimited != nil && cfg.IsRateLimited(err) {
			delay += cfg.RateLimitWait
		}

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": cfg.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("operation failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// backoffDelay computes baseDelay * 2^(attempt-1), capped at MaxDelay.
func backoffDelay(cfg *Config, attempt int) time.Duration {
	delay := cfg.BaseDelay << uint(attempt-1)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
