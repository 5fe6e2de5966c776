package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erauner12/odoosync/internal/auth"
)

// TokenBucket refills continuously at refillRate up to capacity.
// Each sync trigger consumes one token.
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return newTokenBucketAt(capacity, refillRate, time.Now)
}

func newTokenBucketAt(capacity int, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow consumes a token if one is available.
// It returns the tokens left and, when denied, how long until the next token.
func (tb *TokenBucket) Allow() (bool, int, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), 0
	}

	wait := time.Duration((1.0 - tb.tokens) / tb.refillRate * float64(time.Second))
	return false, 0, wait
}

func (tb *TokenBucket) idleSince(t time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill.Before(t)
}

// RateLimiter keeps one bucket per token subject
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitInfo
	now     func() time.Time
	mu      sync.Mutex
}

// NewRateLimiter creates a limiter for the given policy
func NewRateLimiter(config RateLimitInfo) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		now:     time.Now,
	}
}

// Allow checks and consumes a token for subject
func (rl *RateLimiter) Allow(subject string) (bool, int, time.Duration) {
	rl.mu.Lock()
	bucket, ok := rl.buckets[subject]
	if !ok {
		// Triggers are rare, so idle buckets are pruned lazily on creation
		rl.pruneLocked()
		refillRate := float64(rl.config.MaxRequests) / float64(rl.config.WindowSeconds)
		bucket = newTokenBucketAt(rl.config.Burst, refillRate, rl.now)
		rl.buckets[subject] = bucket
	}
	rl.mu.Unlock()
	return bucket.Allow()
}

func (rl *RateLimiter) pruneLocked() {
	cutoff := rl.now().Add(-time.Hour)
	for subject, bucket := range rl.buckets {
		if bucket.idleSince(cutoff) {
			delete(rl.buckets, subject)
		}
	}
}

// RateLimitMiddleware limits requests per authenticated subject.
// Each call builds its own limiter, so route groups can carry different policies.
func RateLimitMiddleware(config RateLimitInfo) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.Subject(r.Context())
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, wait := limiter.Allow(subject)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(config.Burst))

			if !allowed {
				retryAfter := int(wait.Round(time.Second) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				logger := requestLogger(r)
				logger.Warn().
					Str("path", r.URL.Path).
					Int("retryAfter", retryAfter).
					Msg("sync trigger rate limited")

				writeError(w, r, http.StatusTooManyRequests,
					"rate limit exceeded, retry after "+strconv.Itoa(retryAfter)+" seconds")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
