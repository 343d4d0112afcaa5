package appMiddleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type windowCounter struct {
	mu    sync.Mutex
	count int
	reset time.Time
}

// RateLimiter tracks request counts per client IP over a fixed window.
// Expired windows are swept by the underlying cache so idle clients do
// not accumulate.
type RateLimiter struct {
	requests int
	window   time.Duration
	counters *cache.Cache
}

func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: requests,
		window:   window,
		counters: cache.New(window, 2*window),
	}
}

// Allow records a hit for the given key and reports whether it is within
// the limit. The second return value is the time the current window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Time) {
	now := time.Now()

	entry, found := rl.counters.Get(key)
	if !found {
		wc := &windowCounter{count: 1, reset: now.Add(rl.window)}
		rl.counters.Set(key, wc, rl.window)
		return true, wc.reset
	}

	wc := entry.(*windowCounter)
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if now.After(wc.reset) {
		wc.count = 1
		wc.reset = now.Add(rl.window)
		rl.counters.Set(key, wc, rl.window)
		return true, wc.reset
	}

	wc.count++
	return wc.count <= rl.requests, wc.reset
}

// Middleware applies the limiter to every request, keyed by client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, reset := rl.Allow(clientIP(r))
		if !allowed {
			retryAfter := int(time.Until(reset).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// RealIP middleware rewrites RemoteAddr from X-Forwarded-For when present.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
