package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is multiplied by the failed attempt's number to get the
	// wait before the next attempt (1×, 2×, 3×, ...).
	BaseDelay time.Duration
}

// Delay returns the wait that follows failed attempt n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	return p.BaseDelay * time.Duration(n)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// permanentError marks an error that no amount of retrying can fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ExhaustedError is returned by Retry once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type attemptKey struct{}

// Attempt returns the 1-based attempt number of the current Retry call, or
// 0 outside of Retry.
func Attempt(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

// Retry calls op until it succeeds, returns a permanent error, or the policy
// runs out of attempts. Between attempts it waits policy.Delay(n) and gives
// up early if ctx is done during the wait.
func Retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, op Operation[T]) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var zero T
	max := policy.attempts()

	var lastErr error
	for n := 1; n <= max; n++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("retry interrupted after %d attempts: %w", n-1, errors.Join(err, lastErr))
			}
			return zero, err
		}

		v, err := op(context.WithValue(ctx, attemptKey{}, n))
		if err == nil {
			return v, nil
		}
		lastErr = err

		if IsPermanent(err) {
			logger.DebugContext(ctx, "permanent error, not retrying",
				"attempt", n,
				"error", err)
			return zero, err
		}
		if n == max {
			break
		}

		delay := policy.Delay(n)
		logger.WarnContext(ctx, "attempt failed, retrying",
			"attempt", n,
			"max_attempts", max,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry interrupted after %d attempts: %w", n, errors.Join(ctx.Err(), lastErr))
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: max, Err: lastErr}
}

// WithRetry is the composable form of Retry.
func WithRetry[T any](policy RetryPolicy, logger *slog.Logger, op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		return Retry(ctx, policy, logger, op)
	}
}
