package analytics

import (
	"sync"
	"time"
)

// RateLimiter is a per-key sliding-window rate limiter.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewRateLimiter allows max hits per key within window. A background
// goroutine drops idle keys until Close is called.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow checks the limit for key and records the hit when allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.prune(key)) >= rl.max {
		return false
	}
	rl.hits[key] = append(rl.hits[key], rl.now())
	return true
}

// Check reports whether key is under the limit without recording a hit.
// Login flows call Record only on failure.
func (rl *RateLimiter) Check(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(key)) < rl.max
}

// Record registers a hit for key.
func (rl *RateLimiter) Record(key string) {
	rl.mu.Lock()
	rl.hits[key] = append(rl.hits[key], rl.now())
	rl.mu.Unlock()
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// prune drops expired hits of key. Caller holds mu.
func (rl *RateLimiter) prune(key string) []time.Time {
	cutoff := rl.now().Add(-rl.window)
	hits := rl.hits[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(rl.hits, key)
		return nil
	}
	rl.hits[key] = kept
	return kept
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key := range rl.hits {
				rl.prune(key)
			}
			rl.mu.Unlock()
		}
	}
}
