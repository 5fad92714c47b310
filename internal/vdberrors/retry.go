package vdberrors

import (
	"context"
	"time"
)

// RetryConfig configures exponential-backoff retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not counting
	// the initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier is the backoff growth factor applied after each retry.
	Multiplier float64
}

// DefaultRetryConfig returns sensible defaults for retrying a flaky
// external Embedder call.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}
}

// Retry runs fn, retrying with exponential backoff while fn returns an
// error, up to cfg.MaxRetries additional attempts. It returns
// immediately if ctx is cancelled, and returns the last error observed
// if all attempts fail.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
