package auxcloud

import (
	"context"
	"time"
)

const (
	maxAttempts      = 3
	retryBackoffBase = 2 * time.Second
)

// sessionController is the slice of sessionManager the retrier needs.
type sessionController interface {
	ensureLoggedIn(ctx context.Context) error
	invalidate()
}

// retrier wraps protocol operations with bounded retry and transparent
// re-authentication. It is the only place automatic re-login happens.
type retrier struct {
	session sessionController
	sleep   func(ctx context.Context, d time.Duration) error
}

func newRetrier(sm sessionController) *retrier {
	return &retrier{session: sm, sleep: sleepContext}
}

// withRetry runs op up to maxAttempts times, making sure a session
// exists before each attempt. Session-pattern failures invalidate the
// session so the next attempt logs in again; other transient failures
// are retried with the same session. Non-retryable errors (bad
// credentials, malformed responses, hard rate limit blocks) surface
// immediately.
func (r *retrier) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := r.session.ensureLoggedIn(ctx)
		if err == nil {
			err = op(ctx)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if isSessionError(err) {
			r.session.invalidate()
		}

		if attempt < maxAttempts-1 {
			// Cancellation is honored between attempts; an in-flight
			// HTTP call is never forcibly cut short.
			if err := r.sleep(ctx, retryBackoffBase<<attempt); err != nil {
				return err
			}
		}
	}

	return &RetryExhaustedError{Attempts: maxAttempts, Err: lastErr}
}
