package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedSite struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, DefaultOptions()), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "site:1", cachedSite{ID: 1, URL: "https://example.com"}, time.Minute))
	assert.True(t, mr.Exists("ohdear:site:1"))

	var got cachedSite
	require.NoError(t, c.Get(ctx, "site:1", &got))
	assert.Equal(t, "https://example.com", got.URL)

	mr.FastForward(2 * time.Minute)
	err := c.Get(ctx, "site:1", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_DefaultTTL(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, c.Set(context.Background(), "badge:broken_links:1", 4, 0))
	assert.Equal(t, 5*time.Minute, mr.TTL("ohdear:badge:broken_links:1"))
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()
	kb := NewKeyBuilder()

	require.NoError(t, c.Set(ctx, kb.Build("badge", "broken_links", "1"), 3, time.Minute))
	require.NoError(t, c.Set(ctx, kb.Build("badge", "mixed_content", "1"), 2, time.Minute))
	require.NoError(t, c.Set(ctx, kb.Build("site", "1"), cachedSite{ID: 1}, time.Minute))

	require.NoError(t, c.Invalidate(ctx, kb.Pattern("badge")))

	assert.False(t, mr.Exists("ohdear:badge:broken_links:1"))
	assert.False(t, mr.Exists("ohdear:badge:mixed_content:1"))
	assert.True(t, mr.Exists("ohdear:site:1"))
}

func TestNopCache(t *testing.T) {
	c := NewNopCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
	assert.NoError(t, c.Ping(ctx))
}
