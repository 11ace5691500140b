package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	require.True(t, rl.allow())
	require.True(t, rl.allow())
	require.True(t, rl.allow())
	require.False(t, rl.allow(), "burst exhausted, next frame must be throttled")
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(2, 20*time.Millisecond)

	require.True(t, rl.allow())
	require.True(t, rl.allow())
	require.False(t, rl.allow())

	time.Sleep(30 * time.Millisecond)
	require.True(t, rl.allow(), "tokens must refill over time")
}

func TestRateLimiterSanitizesBadParameters(t *testing.T) {
	rl := newRateLimiter(0, 0)

	require.True(t, rl.allow(), "capacity floor of one token must apply")
}
