package auxcloud

import (
	"context"
	"time"
)

// The AUX cloud does not document its limits. These are conservative
// values: fixed cooldowns between calls plus exponential backoff once
// the server explicitly throttles us.
const (
	loginCooldown   = 10 * time.Second
	requestCooldown = 1 * time.Second

	throttleBackoffBase = 5 * time.Minute
	throttleBackoffMax  = 1 * time.Hour
)

type cooldownKind int

const (
	cooldownLogin cooldownKind = iota
	cooldownRequest
)

// rateLimiter tracks cooldown windows and server-imposed backoff for
// one client instance. Not safe for concurrent use on its own; the
// Client serializes access.
type rateLimiter struct {
	lastLoginAttempt    time.Time
	lastRequest         time.Time
	blockedUntil        time.Time
	consecutiveFailures uint

	loginCooldown   time.Duration
	requestCooldown time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		loginCooldown:   loginCooldown,
		requestCooldown: requestCooldown,
		now:             time.Now,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// awaitCooldown gates a call of the given kind. A hard block from the
// server fails immediately with RateLimitedError; the soft inter-call
// interval is waited out cooperatively.
func (rl *rateLimiter) awaitCooldown(ctx context.Context, kind cooldownKind) error {
	now := rl.now()

	if now.Before(rl.blockedUntil) {
		return &RateLimitedError{Remaining: rl.blockedUntil.Sub(now)}
	}

	cooldown := rl.requestCooldown
	last := rl.lastRequest
	if kind == cooldownLogin {
		cooldown = rl.loginCooldown
		last = rl.lastLoginAttempt
	}

	if elapsed := now.Sub(last); elapsed < cooldown {
		if err := rl.sleep(ctx, cooldown-elapsed); err != nil {
			return err
		}
	}

	if kind == cooldownLogin {
		rl.lastLoginAttempt = rl.now()
	} else {
		rl.lastRequest = rl.now()
	}
	return nil
}

// onThrottled records a server-side rate limit report. The block
// window grows exponentially while failures are consecutive, capped at
// one hour.
func (rl *rateLimiter) onThrottled() {
	backoff := throttleBackoffBase << rl.consecutiveFailures
	if backoff > throttleBackoffMax || backoff <= 0 {
		backoff = throttleBackoffMax
	}
	rl.blockedUntil = rl.now().Add(backoff)
	rl.consecutiveFailures++
}

// onSuccess resets the failure counter. An already scheduled block
// window is not cleared retroactively.
func (rl *rateLimiter) onSuccess() {
	rl.consecutiveFailures = 0
}

func (rl *rateLimiter) isRateLimited() bool {
	return rl.now().Before(rl.blockedUntil)
}

func (rl *rateLimiter) remaining() time.Duration {
	if d := rl.blockedUntil.Sub(rl.now()); d > 0 {
		return d
	}
	return 0
}
