package auxcloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock drives a rateLimiter without real sleeping. Sleeps advance
// the clock and are recorded.
type testClock struct {
	now    time.Time
	slept  []time.Duration
	sleepE error
}

func (c *testClock) install(rl *rateLimiter) {
	rl.now = func() time.Time { return c.now }
	rl.sleep = func(ctx context.Context, d time.Duration) error {
		if c.sleepE != nil {
			return c.sleepE
		}
		c.slept = append(c.slept, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func newTestLimiter() (*rateLimiter, *testClock) {
	rl := newRateLimiter()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	clock.install(rl)
	return rl, clock
}

func TestAwaitCooldownDelaysSecondCall(t *testing.T) {
	rl, clock := newTestLimiter()
	ctx := context.Background()

	require.NoError(t, rl.awaitCooldown(ctx, cooldownRequest))
	assert.Empty(t, clock.slept, "first call must not wait")

	require.NoError(t, rl.awaitCooldown(ctx, cooldownRequest))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, requestCooldown, clock.slept[0])
}

func TestAwaitCooldownKindsAreIndependent(t *testing.T) {
	rl, clock := newTestLimiter()
	ctx := context.Background()

	require.NoError(t, rl.awaitCooldown(ctx, cooldownLogin))
	require.NoError(t, rl.awaitCooldown(ctx, cooldownRequest))
	assert.Empty(t, clock.slept, "a login must not delay the first request")

	require.NoError(t, rl.awaitCooldown(ctx, cooldownLogin))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, loginCooldown, clock.slept[0])
}

func TestAwaitCooldownHardBlockFailsImmediately(t *testing.T) {
	rl, clock := newTestLimiter()
	rl.blockedUntil = clock.now.Add(3 * time.Minute)

	err := rl.awaitCooldown(context.Background(), cooldownRequest)

	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 3*time.Minute, limited.Remaining)
	assert.Empty(t, clock.slept, "a hard block must not be slept through")
}

func TestOnThrottledExponentialBackoff(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.onThrottled()
	rl.onThrottled()
	rl.onThrottled()

	remaining := rl.blockedUntil.Sub(clock.now)
	assert.GreaterOrEqual(t, remaining, 4*throttleBackoffBase)
	assert.LessOrEqual(t, remaining, throttleBackoffMax)
}

func TestOnThrottledCapsAtOneHour(t *testing.T) {
	rl, clock := newTestLimiter()

	for i := 0; i < 10; i++ {
		rl.onThrottled()
	}

	assert.Equal(t, throttleBackoffMax, rl.blockedUntil.Sub(clock.now))
}

func TestOnSuccessResetsFailuresNotBlock(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.onThrottled()
	blocked := rl.blockedUntil

	rl.onSuccess()
	assert.Equal(t, uint(0), rl.consecutiveFailures)
	assert.Equal(t, blocked, rl.blockedUntil, "an existing block window stays in place")
	assert.True(t, rl.isRateLimited())

	clock.now = blocked.Add(time.Second)
	assert.False(t, rl.isRateLimited())
	assert.Equal(t, time.Duration(0), rl.remaining())
}

func TestAwaitCooldownHonorsCancellation(t *testing.T) {
	rl := newRateLimiter()
	rl.lastRequest = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rl.awaitCooldown(ctx, cooldownRequest)
	assert.True(t, errors.Is(err, context.Canceled))
}
