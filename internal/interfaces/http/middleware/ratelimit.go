package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitInfo is the current window state for one client key.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

// RateLimitConfig controls the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained per-client rate.
	RequestsPerSecond float64

	// BurstSize is the instantaneous allowance above the sustained rate.
	BurstSize int

	// KeyFunc extracts the client key. Defaults to the remote IP.
	KeyFunc func(r *http.Request) string

	// SkipPaths bypass limiting entirely.
	SkipPaths []string
}

// DefaultRateLimitConfig allows 20 req/s with a burst of 40 per client IP
// and never throttles probe endpoints.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
	}
}

// tokenBucket is one client's refill state.
type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// TokenBucketLimiter is an in-memory token bucket limiter keyed by
// client. Buckets idle past the cleanup horizon are dropped so the map
// cannot grow without bound.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket

	rate  float64
	burst float64

	lastCleanup time.Time
	now         func() time.Time
}

// NewTokenBucketLimiter builds a limiter with the given sustained rate
// and burst allowance.
func NewTokenBucketLimiter(requestsPerSecond float64, burstSize int) *TokenBucketLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burstSize <= 0 {
		burstSize = 1
	}
	return &TokenBucketLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    requestsPerSecond,
		burst:   float64(burstSize),
		now:     time.Now,
	}
}

const bucketIdleTTL = 10 * time.Minute

// Allow consumes one token from the key's bucket if available.
func (l *TokenBucketLimiter) Allow(key string) (bool, RateLimitInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens += elapsed * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastSeen = now
	}

	info := RateLimitInfo{Limit: int(l.burst)}
	if b.tokens >= 1 {
		b.tokens--
		info.Remaining = int(b.tokens)
		info.ResetAt = now
		return true, info
	}

	deficit := 1 - b.tokens
	info.Remaining = 0
	info.ResetAt = now.Add(time.Duration(deficit / l.rate * float64(time.Second)))
	return false, info
}

func (l *TokenBucketLimiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < bucketIdleTTL {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastCleanup = now
}

// RateLimit rejects requests past the client's allowance with a 429 and
// standard X-RateLimit headers.
func RateLimit(limiter RateLimiter, cfg RateLimitConfig) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = clientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, info := limiter.Allow(keyFunc(r))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(info.ResetAt).Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
