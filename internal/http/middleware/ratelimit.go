// In-memory token-bucket rate limiting.
//
// Buckets are kept per identity (user id when known, client IP otherwise)
// and replenished by golang.org/x/time/rate. The limiter is process-local;
// a horizontally scaled deployment needs a shared backend instead. GET
// requests flagged by ExemptPolling skip limiting entirely: the conversation
// view is polled at animation frequency during a reveal and those reads must
// not drain the caller's tokens.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateBypassKey is the Gin context key flagging a request as exempt.
const rateBypassKey = "rateBypass"

const (
	// bucketTTL is how long an untouched bucket survives.
	bucketTTL = 10 * time.Minute
	// sweepEvery is the lookup count between eviction sweeps.
	sweepEvery = 5000
)

// keyFunc maps a request to a stable bucket identity.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated user when the context
// carries one ("userID"), by client IP otherwise. Prefixes keep the two
// namespaces from colliding.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands each identity its own token bucket. Buckets are created
// on demand and idle ones are evicted in periodic sweeps so the map stays
// bounded. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with
// the given burst capacity. A burst below 1 is coerced to 1; rps 0 admits
// nothing (other than bypassed requests).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
	}
}

// take returns the bucket for key, creating it when absent. Every sweepEvery
// lookups, idle buckets are evicted first, so a stale bucket is dropped even
// when it is the one being fetched.
func (rl *RateLimiter) take(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= bucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// ExemptPolling flags GET requests to the given paths for rate-limit bypass.
// Install before Handler in the chain.
func ExemptPolling(paths ...string) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		exempt[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			if _, ok := exempt[c.Request.URL.Path]; ok {
				c.Set(rateBypassKey, true)
			}
		}
		c.Next()
	}
}

// IsRateBypass reports whether an earlier middleware flagged this request as
// exempt from limiting.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(rateBypassKey)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-key limit. Exhausted buckets produce a 429 with
// the standard error envelope shape and a Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		if rl.take(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
