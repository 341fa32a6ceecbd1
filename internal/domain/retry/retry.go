// Package retry runs operations against the provider with bounded retries
// and exponential backoff. Only transiently-classified errors are retried;
// permanent errors return immediately on the first attempt.
package retry

import (
	"context"
	"time"

	"finsync/internal/domain/classify"
)

// Config is one retry policy.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt, so a
	// transient failure sees MaxRetries+1 attempts total.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration
}

// DefaultConfig is the sync-path policy: 4 retries, 1s base doubling to an
// 8s cap, 60s per attempt.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     4,
		BaseDelay:      1 * time.Second,
		MaxDelay:       8 * time.Second,
		AttemptTimeout: 60 * time.Second,
	}
}

// WebhookConfig is the webhook-handler policy: fewer retries and a tighter
// attempt timeout, since the provider is waiting on the HTTP response path.
func WebhookConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       8 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Observer is called before each backoff sleep with the failed attempt
// number (1-based), its error, and the upcoming delay.
type Observer func(attempt int, err error, delay time.Duration)

// Do runs op until it succeeds, fails permanently, exhausts retries, or the
// context ends. The first attempt runs immediately.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error), observe Observer) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		result, err := runAttempt(ctx, cfg, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !classify.IsTransient(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries+1 {
			break
		}

		delay := backoffDelay(cfg, attempt)
		if observe != nil {
			observe(attempt, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	if cfg.AttemptTimeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
		return op(attemptCtx)
	}
	return op(ctx)
}

// backoffDelay is min(BaseDelay * 2^(attempt-1), MaxDelay).
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}
