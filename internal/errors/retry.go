package errors

import (
	"context"
	"fmt"
	"math"
	"time"

	"guardrail/internal/logging"
)

// Backoff selects how the wait between attempts grows.
type Backoff int

const (
	// BackoffLinear waits BaseDelay x attempt number: after attempt 1 it
	// waits BaseDelay, after attempt 2 twice that, and so on.
	BackoffLinear Backoff = iota
	// BackoffExponential doubles the wait after every attempt.
	BackoffExponential
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first (default: 3)
	BaseDelay   time.Duration // base delay between attempts (default: 30s)
	MaxDelay    time.Duration // cap on a single wait; 0 means uncapped
	Backoff     Backoff

	// OnAttempt, when set, is called after every attempt with the 1-based
	// attempt number, the elapsed time of that attempt, and its error
	// (nil on success). Callers use it for audit trails and heartbeat
	// message updates.
	OnAttempt func(attempt int, elapsed time.Duration, err error)
}

// DefaultRetryConfig matches the evaluation task policy: three attempts with
// linear 30s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   30 * time.Second,
		Backoff:     BackoffLinear,
	}
}

// Retry executes fn until it succeeds, returns a non-transient error, the
// attempt budget runs out, or ctx is cancelled.
func Retry(ctx context.Context, config RetryConfig, logger logging.Logger, fn func(ctx context.Context) error) error {
	_, err := RetryWithResult(ctx, config, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, logger logging.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	logger = logging.OrNop(logger)
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		logger.Debug("attempt %d/%d", attempt, config.MaxAttempts)
		started := time.Now()
		result, err := fn(ctx)
		if config.OnAttempt != nil {
			config.OnAttempt(attempt, time.Since(started), err)
		}

		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded on attempt %d/%d", attempt, config.MaxAttempts)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("attempt %d failed: %v", attempt, err)

		if !IsTransient(err) {
			logger.Debug("error is not transient, giving up")
			return zero, err
		}

		if attempt == config.MaxAttempts {
			logger.Warn("all %d attempts failed", config.MaxAttempts)
			break
		}

		delay := backoffDelay(attempt, config)
		logger.Debug("waiting %v before attempt %d", delay, attempt+1)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", config.MaxAttempts, lastErr)
}

// backoffDelay returns the wait after the given 1-based attempt.
func backoffDelay(attempt int, config RetryConfig) time.Duration {
	var delay time.Duration
	switch config.Backoff {
	case BackoffExponential:
		delay = time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	default:
		delay = config.BaseDelay * time.Duration(attempt)
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}
