// Package provider holds the retry and polling plumbing for provider
// calls. The orchestrator owns retry policy for one-shot calls; adapters
// only use the poller for operations that are inherently a wait.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
)

// ErrStillRunning signals that a polled operation has not reached a terminal
// state yet. Pollers treat it as retryable; exhaustion maps to a timeout.
var ErrStillRunning = errors.New("operation still running")

// ResilienceConfig configures retry behaviour for provider calls.
type ResilienceConfig struct {
	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration
}

// DefaultResilienceConfig returns sensible defaults for provider calls.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		RetryAttempts:    3,
		RetryInitialWait: 500 * time.Millisecond,
		RetryMaxWait:     10 * time.Second,
	}
}

// NewCallRetrier builds a retrier for one-shot provider calls with
// exponential backoff and jitter. Only errors the errors package classifies
// as retryable are attempted again.
func NewCallRetrier[T any](cfg ResilienceConfig) retry.Retry[T] {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return retry.New[T](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  cfg.RetryInitialWait,
		MaxDelay:      cfg.RetryMaxWait,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
		Jitter:        true,
		IsRetryable:   isRetryableCallError,
	})
}

// NewPoller builds a retrier that re-runs the operation at a fixed interval
// until it stops returning ErrStillRunning or the attempt budget runs out.
func NewPoller[T any](interval time.Duration, maxAttempts int) retry.Retry[T] {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return retry.New[T](retry.Config{
		MaxAttempts:   maxAttempts,
		InitialDelay:  interval,
		MaxDelay:      interval,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    1.0,
		Jitter:        false,
		IsRetryable:   isRetryablePollError,
	})
}

func isRetryableCallError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return apperrors.IsRetryable(err)
}

func isRetryablePollError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrStillRunning) {
		return true
	}
	return apperrors.IsRetryable(err)
}

// MapPollExhaustion converts a still-running error left over after the poll
// budget into a timeout error. Other errors pass through unchanged.
func MapPollExhaustion(op, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStillRunning) {
		return apperrors.Timeout(op, what+" did not finish within the polling budget")
	}
	return err
}
