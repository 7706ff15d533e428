package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrCacheMiss is returned when a key is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Cache defines the interface for cache operations
type Cache interface {
	// Get retrieves a value from cache into dest
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with TTL; zero TTL uses the default
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Invalidate removes all keys matching a pattern
	Invalidate(ctx context.Context, pattern string) error

	// Ping checks if cache is available
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Codec defines the interface for encoding/decoding cache values
type Codec interface {
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte, dest interface{}) error
}

// JSONCodec implements Codec using JSON encoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func (c *JSONCodec) Decode(data []byte, dest interface{}) error {
	return json.Unmarshal(data, dest)
}

// Options represents cache configuration options
type Options struct {
	// DefaultTTL is used when Set is called with a zero TTL
	DefaultTTL time.Duration

	// Namespace is a prefix for all cache keys
	Namespace string

	Codec Codec
}

// DefaultOptions returns default cache options
func DefaultOptions() *Options {
	return &Options{
		DefaultTTL: 5 * time.Minute,
		Namespace:  "ohdear",
		Codec:      &JSONCodec{},
	}
}

// KeyBuilder builds cache keys with consistent formatting
type KeyBuilder struct {
	separator string
}

func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{separator: ":"}
}

// Build joins parts with the key separator
func (b *KeyBuilder) Build(parts ...string) string {
	return strings.Join(parts, b.separator)
}

// Pattern builds a pattern for cache invalidation
func (b *KeyBuilder) Pattern(parts ...string) string {
	return b.Build(parts...) + "*"
}

// NopCache never stores anything. Used when redis is not configured.
type NopCache struct{}

func NewNopCache() *NopCache {
	return &NopCache{}
}

func (NopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrCacheMiss
}

func (NopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (NopCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (NopCache) Invalidate(ctx context.Context, pattern string) error {
	return nil
}

func (NopCache) Ping(ctx context.Context) error {
	return nil
}

func (NopCache) Close() error {
	return nil
}
