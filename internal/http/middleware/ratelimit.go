package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter tracks a token bucket per client so one phone spamming the
// webhook cannot starve the rest.
type RateLimiter struct {
	mu    sync.Mutex
	seen  map[string]*tokenBucket
	rate  float64
	burst float64

	// Entries idle past this are dropped during the inline sweep.
	idleAfter time.Duration
	lastSweep time.Time
}

type tokenBucket struct {
	tokens  float64
	updated time.Time
}

// NewRateLimiter allows rate requests/sec with the given burst per client key.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		seen:      make(map[string]*tokenBucket),
		rate:      rate,
		burst:     float64(burst),
		idleAfter: 10 * time.Minute,
		lastSweep: time.Now(),
	}
}

// Allow reports whether a request under key is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	b, ok := rl.seen[key]
	if !ok {
		rl.seen[key] = &tokenBucket{tokens: rl.burst - 1, updated: now}
		return true
	}

	b.tokens += now.Sub(b.updated).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.updated = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops idle buckets. Runs inline under the lock at most once per
// idleAfter interval, so no background goroutine is needed.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idleAfter {
		return
	}
	rl.lastSweep = now
	cutoff := now.Add(-rl.idleAfter)
	for key, b := range rl.seen {
		if b.updated.Before(cutoff) {
			delete(rl.seen, key)
		}
	}
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			// chi's RealIP middleware rewrites RemoteAddr behind a proxy,
			// but fall back to the header when it runs after us.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				key = xri
			}
			if !limiter.Allow(key) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
