package embedding

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/cenkalti/backoff/v5"
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient tags a provider error as worth retrying (rate limit, timeout, 5xx).
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func IsRetryableHTTPStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// RetryPolicy retries an operation on transient errors with capped exponential backoff and jitter.
// Each attempt runs under AttemptTimeout; a timed-out attempt counts as transient.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	AttemptTimeout  time.Duration

	// Classify overrides IsTransient, mostly for tests.
	Classify func(error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(err error, wait time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     config.EmbeddingMaxAttempts,
		InitialInterval: config.EmbeddingInitialBackoff,
		MaxInterval:     config.EmbeddingMaxBackoff,
		Multiplier:      2,
		Jitter:          config.EmbeddingJitter,
		AttemptTimeout:  config.EmbeddingCallTimeout,
	}
}

// Do returns the number of attempts made and the last error, if any.
// Cancellation of ctx itself is never retried.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = p.Jitter
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}

	maxTries := p.MaxAttempts
	if maxTries < 1 {
		maxTries = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxTries)),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(p.OnRetry))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		callCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}

		err := op(callCtx)
		switch {
		case err == nil:
			return struct{}{}, nil
		case ctx.Err() != nil:
			return struct{}{}, backoff.Permanent(err)
		case !classify(err):
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)

	return attempts, err
}
