package security

import (
	"sync"
	"time"
)

// RateLimiter allows at most rate events per key within any sliding window
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string][]time.Time
	rate     int
	window   time.Duration
	now      func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := newRateLimiter(rate, window, time.Now)
	go rl.cleanupVisitors(cleanupInterval(window))
	return rl
}

func newRateLimiter(rate int, window time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string][]time.Time),
		rate:     rate,
		window:   window,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func cleanupInterval(window time.Duration) time.Duration {
	if window < time.Minute {
		return time.Minute
	}
	return window
}

// Allow records an event for key and reports whether it is within the limit.
// Rejected events are not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := prune(rl.visitors[key], now.Add(-rl.window))
	if len(recent) >= rl.rate {
		rl.visitors[key] = recent
		return false
	}
	rl.visitors[key] = append(recent, now)
	return true
}

// Remaining returns how many more events key may record right now
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := prune(rl.visitors[key], rl.now().Add(-rl.window))
	rl.visitors[key] = recent
	if n := rl.rate - len(recent); n > 0 {
		return n
	}
	return 0
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
	<-rl.done
}

// prune drops events at or before cutoff; events are in time order
func prune(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}

func (rl *RateLimiter) cleanupVisitors(interval time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for key, events := range rl.visitors {
		if recent := prune(events, cutoff); len(recent) == 0 {
			delete(rl.visitors, key)
		} else {
			rl.visitors[key] = recent
		}
	}
}
