package stageexec

import (
	"context"
	"errors"

	"mediaorganizer/internal/services"
)

// DefaultMaxAttempts retries a failed item exactly once.
const DefaultMaxAttempts = 2

// RetryPolicy bounds how often an item is attempted. Retries are immediate.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy returns the single-retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// AttemptError is the error captured for one attempt.
type AttemptError struct {
	Attempt int
	Err     error
}

// Do calls fn until it succeeds, the attempts are exhausted, or the error is
// not retryable. It returns every attempt's error in order and the final error.
// Already-processed results, fatal errors, and cancellation are not retried.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) ([]AttemptError, error) {
	var history []AttemptError
	max := p.attempts()
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}
		err := fn(services.WithAttempt(ctx, attempt), attempt)
		if err == nil {
			return history, nil
		}
		history = append(history, AttemptError{Attempt: attempt, Err: err})
		if !retryable(err) {
			return history, err
		}
	}
	return history, history[len(history)-1].Err
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, services.ErrAlreadyProcessed):
		return false
	case services.IsFatal(err):
		return false
	default:
		return true
	}
}
