package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"resumecoach/internal/redis"
)

const (
	cacheKeyPrefix  = "analysis:"
	DefaultCacheTTL = time.Hour
)

// Cache stores completion bodies by prompt.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// RedisCache keeps completions in redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key)
	if err != nil {
		if redis.IsMiss(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, c.ttl)
}

// cacheKey hashes model and prompt so identical uploads share an entry.
func cacheKey(modelName, reviewPrompt string) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(reviewPrompt))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
