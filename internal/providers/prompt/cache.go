package prompt

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// InstructionCache fronts the instruction store for hot (clinic, service) pairs.
type InstructionCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, instruction string)
}

// CacheKey builds the cache key for a clinic service.
func CacheKey(clinicID, service string) string {
	return "aura:instruction:" + clinicID + ":" + service
}

// MemoryCache is a process-local cache.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func (m *MemoryCache) Set(_ context.Context, key, instruction string) {
	if instruction == "" {
		return
	}
	m.c.SetDefault(key, instruction)
}

// RedisCache shares instructions across API replicas. Redis errors degrade
// to cache misses.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		// redis.Nil is a plain miss; anything else is treated the same way.
		return "", false
	}
	return v, v != ""
}

func (r *RedisCache) Set(ctx context.Context, key, instruction string) {
	if instruction == "" {
		return
	}
	_ = r.client.Set(ctx, key, instruction, r.ttl).Err()
}

var (
	_ InstructionCache = (*MemoryCache)(nil)
	_ InstructionCache = (*RedisCache)(nil)
)
