// Package server throttles inbound frames with a per-connection token
// bucket so one chatty client cannot monopolize the hub.
package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket sized by the configured burst. The bucket
// refills continuously at burst tokens per refill interval, so a client
// that pauses briefly earns its full burst back.
type rateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	burst    float64
	perSec   float64
	refilled time.Time
}

// newRateLimiter builds a bucket that starts full. Non-positive inputs
// fall back to one frame per second rather than disabling the limiter.
func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &rateLimiter{
		tokens:   float64(burst),
		burst:    float64(burst),
		perSec:   float64(burst) / interval.Seconds(),
		refilled: time.Now(),
	}
}

// allow consumes one token if any is available, crediting the bucket for
// the time elapsed since the previous call first.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.refilled).Seconds(); elapsed > 0 {
		rl.tokens = min(rl.tokens+elapsed*rl.perSec, rl.burst)
	}
	rl.refilled = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
