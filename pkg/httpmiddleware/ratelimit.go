package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the request budget per window.
	Max int
	// Window is the sliding window duration.
	Window time.Duration
	// KeyFunc derives the limiter key from a request. Nil keys requests by
	// client IP.
	KeyFunc func(*http.Request) string
}

// bucket holds a client's counts for the current window and the one before
// it. The weighted sum of the two approximates a true sliding window without
// keeping per-request timestamps.
type bucket struct {
	prev      float64
	prevStart time.Time
	curr      float64
	currStart time.Time
}

type rateLimiter struct {
	max     float64
	window  time.Duration
	keyFunc func(*http.Request) string

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = clientIP
	}
	return &rateLimiter{
		max:     float64(cfg.Max),
		window:  cfg.Window,
		keyFunc: keyFunc,
		buckets: make(map[string]*bucket),
	}
}

// allow records a request for key at time now and reports whether it fits
// the budget, along with the remaining budget and the window reset time.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{currStart: now}
		rl.buckets[key] = b
	}

	if now.Sub(b.currStart) >= rl.window {
		b.prev, b.prevStart = b.curr, b.currStart
		b.curr = 0
		b.currStart = now.Truncate(rl.window)
		if now.Sub(b.prevStart) >= 2*rl.window {
			b.prev = 0
		}
	}

	// Weight the previous window by the share of it still inside the
	// sliding window.
	weight := 1.0 - now.Sub(b.currStart).Seconds()/rl.window.Seconds()
	if weight < 0 {
		weight = 0
	}
	used := b.prev*weight + b.curr
	resetAt = b.currStart.Add(rl.window)

	if used >= rl.max {
		return 0, resetAt, false
	}

	b.curr++
	remaining = int(rl.max - used - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// evictStale drops buckets untouched for two full windows.
func (rl *rateLimiter) evictStale(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.currStart) >= 2*rl.window {
			delete(rl.buckets, key)
		}
	}
}

func (rl *rateLimiter) startEviction(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.evictStale(now)
			}
		}
	}()
}

// RateLimit returns a middleware enforcing a per-key sliding window limit.
// Exceeding the budget yields 429 with a JSON body; every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset headers.
// Stale per-key state is never evicted; use RateLimitWithCleanup on
// long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit plus a background goroutine that evicts
// idle keys until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	rl.startEviction(ctx)
	return rl.middleware()
}

func (rl *rateLimiter) middleware() Middleware {
	limit := strconv.Itoa(int(rl.max))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, allowed := rl.allow(rl.keyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				retryAfter := math.Ceil(time.Until(resetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				h.Set("Retry-After", strconv.Itoa(int(retryAfter)))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys requests by originating IP: first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
