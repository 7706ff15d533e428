// Package lockout blocks clients that keep failing authentication, such as
// pollers sending a wrong health check secret.
package lockout

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Limiter counts failures per key and blocks keys that exceed the limit.
type Limiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Config bounds failures: MaxFailures within Window blocks the key for
// BlockFor.
type Config struct {
	MaxFailures int
	Window      time.Duration
	BlockFor    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxFailures: 5, Window: time.Minute, BlockFor: 15 * time.Minute}
}

// InMemoryLimiter keeps failure counts in process memory.
type InMemoryLimiter struct {
	mu       sync.Mutex
	cfg      Config
	attempts map[string]*attemptInfo
	now      func() time.Time
}

type attemptInfo struct {
	count     int
	firstTime time.Time
	blocked   bool
	blockTime time.Time
}

func NewInMemoryLimiter(cfg Config) *InMemoryLimiter {
	return &InMemoryLimiter{
		cfg:      cfg,
		attempts: make(map[string]*attemptInfo),
		now:      time.Now,
	}
}

func (l *InMemoryLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, exists := l.attempts[key]
	if !exists || !info.blocked {
		return false, nil
	}
	if l.now().Sub(info.blockTime) > l.cfg.BlockFor {
		delete(l.attempts, key)
		return false, nil
	}
	return true, nil
}

func (l *InMemoryLimiter) Fail(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	info, exists := l.attempts[key]
	if !exists || now.Sub(info.firstTime) > l.cfg.Window {
		l.attempts[key] = &attemptInfo{count: 1, firstTime: now}
		info = l.attempts[key]
	} else {
		info.count++
	}

	if info.count >= l.cfg.MaxFailures {
		info.blocked = true
		info.blockTime = now
	}
	return nil
}

func (l *InMemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}

// prune drops entries that can no longer block anyone. Callers hold mu.
func (l *InMemoryLimiter) prune(now time.Time) {
	for key, info := range l.attempts {
		expired := !info.blocked && now.Sub(info.firstTime) > l.cfg.Window
		released := info.blocked && now.Sub(info.blockTime) > l.cfg.BlockFor
		if expired || released {
			delete(l.attempts, key)
		}
	}
}

// RedisLimiter shares failure counts between instances.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix}
}

func (r *RedisLimiter) blockedKey(key string) string {
	return fmt.Sprintf("%s:blocked:%s", r.prefix, key)
}

func (r *RedisLimiter) attemptsKey(key string) string {
	return fmt.Sprintf("%s:attempts:%s", r.prefix, key)
}

func (r *RedisLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.blockedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read lockout state: %w", err)
	}
	return n > 0, nil
}

func (r *RedisLimiter) Fail(ctx context.Context, key string) error {
	attemptsKey := r.attemptsKey(key)
	count, err := r.client.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return fmt.Errorf("failed to count failure: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, attemptsKey, r.cfg.Window).Err(); err != nil {
			return fmt.Errorf("failed to set failure window: %w", err)
		}
	}

	if int(count) >= r.cfg.MaxFailures {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, r.blockedKey(key), "1", r.cfg.BlockFor)
		pipe.Del(ctx, attemptsKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to block key: %w", err)
		}
	}
	return nil
}

func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.attemptsKey(key), r.blockedKey(key)).Err()
}

// Middleware rejects blocked clients with 429, counts responses with
// failStatus against the client and clears the count on success.
func Middleware(limiter Limiter, failStatus int, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		blocked, err := limiter.Blocked(ctx, key)
		if err != nil {
			log.Error("Lockout check failed", "ip", key, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lockout check failed"})
			c.Abort()
			return
		}
		if blocked {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts. Please try again later."})
			c.Abort()
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case failStatus:
			if err := limiter.Fail(ctx, key); err != nil {
				log.Error("Failed to record failed attempt", "ip", key, "error", err)
			}
		case http.StatusOK:
			if err := limiter.Reset(ctx, key); err != nil {
				log.Warn("Failed to reset failed attempts", "ip", key, "error", err)
			}
		}
	}
}
