package auxcloud

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCredentials is returned when the cloud rejects the
// email/password pair. Retrying with the same credentials is pointless.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrSessionExpired is returned when the cloud no longer accepts the
// current login session. RetryController re-authenticates on it.
var ErrSessionExpired = errors.New("login session expired")

// RateLimitedError is returned while the client is inside a server
// imposed backoff window. Callers must wait, not retry.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %d seconds", int(e.Remaining.Seconds()+0.999))
}

// MalformedResponseError is returned when a response does not match the
// expected envelope shape. Not retried, a protocol mismatch will not
// fix itself.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Reason
}

// TransportError wraps network level failures so they can be retried
// with backoff.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LoginError carries the server message for login failures that are
// neither throttling nor credential rejection.
type LoginError struct {
	Msg string
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Msg
}

// RetryExhaustedError wraps the last error observed after the retry
// budget ran out.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// isSessionError reports whether an error looks like a server-side
// session/auth rejection, in which case dropping the session and
// logging in again is worth a shot.
func isSessionError(err error) bool {
	if errors.Is(err, ErrSessionExpired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"session", "login", "auth", "401", "unauthorized"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// isRetryable reports whether retrying the operation can possibly
// succeed. Credential rejections, protocol mismatches and hard rate
// limit blocks are surfaced immediately.
func isRetryable(err error) bool {
	if errors.Is(err, ErrInvalidCredentials) {
		return false
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}
	var limited *RateLimitedError
	return !errors.As(err, &limited)
}
