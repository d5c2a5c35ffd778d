package ratelimit

import (
	"sync"
	"time"

	"github.com/deusflow/milnews/internal/logger"
)

// Limiter caps how many requests each client may make per fixed window.
// Counters for every client reset together when the window rolls over.
type Limiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	counts    map[string]int
	resetTime time.Time
	rejected  int
	now       func() time.Time
}

// New creates a limiter allowing max requests per client per window.
// max <= 0 disables limiting.
func New(max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &Limiter{
		max:    max,
		window: window,
		counts: make(map[string]int),
		now:    time.Now,
	}
	rl.resetTime = rl.now().Add(window)
	return rl
}

// Allow records one request from client and reports whether it is within
// the limit. A nil Limiter allows everything.
func (rl *Limiter) Allow(client string) bool {
	if rl == nil || rl.max <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()

	if rl.counts[client] >= rl.max {
		rl.rejected++
		if rl.rejected == 1 {
			logger.Warn("Rate limit reached", "client", client, "limit", rl.max, "window", rl.window)
		}
		return false
	}
	rl.counts[client]++
	return true
}

// GetStats returns current rate limiter statistics. A nil Limiter reports nil.
func (rl *Limiter) GetStats() map[string]interface{} {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"clients":    len(rl.counts),
		"limit":      rl.max,
		"rejected":   rl.rejected,
		"reset_time": rl.resetTime,
	}
}

// checkReset clears counters once the window has passed.
func (rl *Limiter) checkReset() {
	now := rl.now()
	if now.Before(rl.resetTime) {
		return
	}
	if rl.rejected > 0 {
		logger.Info("Resetting rate limiter", "rejected", rl.rejected, "clients", len(rl.counts))
	}
	rl.counts = make(map[string]int)
	rl.rejected = 0
	rl.resetTime = now.Add(rl.window)
}
