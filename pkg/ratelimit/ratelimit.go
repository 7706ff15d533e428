package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter interface for different rate limiting strategies
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Burst() int
}

// TokenBucketLimiter is a single shared token bucket.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewPerMinuteLimiter allows perMinute events per minute with a burst of burst.
func NewPerMinuteLimiter(perMinute int, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(), nil
}

// Wait blocks until a token is available or ctx is done.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *TokenBucketLimiter) Burst() int {
	return l.limiter.Burst()
}

const (
	// DefaultIdleTTL is how long an unused per-key bucket is kept.
	DefaultIdleTTL = 3 * time.Minute
	// DefaultMaxKeys caps the number of buckets held at once.
	DefaultMaxKeys = 10000
)

// KeyedLimiter keeps one token bucket per key (client IP). Buckets idle for
// longer than IdleTTL are dropped, and at most MaxKeys are held.
type KeyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*keyedBucket
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	maxKeys   int
	lastSweep time.Time
	now       func() time.Time
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyedLimiter(rps int, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*keyedBucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  DefaultIdleTTL,
		maxKeys:  DefaultMaxKeys,
		now:      time.Now,
	}
}

func (k *KeyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) >= k.idleTTL {
		k.sweep(now)
	}

	b, ok := k.limiters[key]
	if !ok {
		if len(k.limiters) >= k.maxKeys {
			k.sweep(now)
			if len(k.limiters) >= k.maxKeys {
				k.evictOldest()
			}
		}
		b = &keyedBucket{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.limiters[key] = b
	}
	b.lastSeen = now
	k.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// sweep drops idle buckets. Callers hold mu.
func (k *KeyedLimiter) sweep(now time.Time) {
	for key, b := range k.limiters {
		if now.Sub(b.lastSeen) > k.idleTTL {
			delete(k.limiters, key)
		}
	}
	k.lastSweep = now
}

// evictOldest drops the least recently seen bucket. Callers hold mu.
func (k *KeyedLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, b := range k.limiters {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = key, b.lastSeen
		}
	}
	delete(k.limiters, oldestKey)
}

// Len returns the number of buckets currently held.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

func (k *KeyedLimiter) Burst() int {
	return k.burst
}

// RedisRateLimiter implements a fixed-window limiter shared across instances.
type RedisRateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter allows limit requests per key in each window. Windows
// shorter than a second are rounded up to one second.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{
		redis:  client,
		limit:  limit,
		window: window,
		prefix: "ohdear:ratelimit:",
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := fmt.Sprintf("%s%s:%d", r.prefix, key, time.Now().Unix()/int64(r.window.Seconds()))

	pipe := r.redis.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	return incr.Val() <= int64(r.limit), nil
}

func (r *RedisRateLimiter) Burst() int {
	return r.limit
}

// Middleware creates a Gin middleware for rate limiting
func Middleware(limiter RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			key = c.ClientIP()
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiting error"})
			c.Abort()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPKeyFunc returns client IP as rate limit key
func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
