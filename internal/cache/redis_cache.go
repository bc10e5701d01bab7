package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"keywarden-go/internal/models"
)

// keyPrefix namespaces validation outcomes in a shared Redis instance
const keyPrefix = "keywarden:result:"

// RedisCache shares validation outcomes across processes. Stored values
// are outcome JSON keyed by the one-way hash, never key material.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache creates a Redis-backed cache layer
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
	}, nil
}

// Get retrieves a cached outcome by hash
func (rc *RedisCache) Get(hash string) (models.ValidationResult, bool) {
	val, err := rc.client.Get(rc.ctx, keyPrefix+hash).Result()
	if err != nil {
		return models.ValidationResult{}, false
	}

	var result models.ValidationResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return models.ValidationResult{}, false
	}

	return result, true
}

// Set stores a cached outcome with a TTL
func (rc *RedisCache) Set(hash string, result models.ValidationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cached result: %w", err)
	}

	if err := rc.client.Set(rc.ctx, keyPrefix+hash, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}

	return nil
}

// Delete removes a cached outcome
func (rc *RedisCache) Delete(hash string) error {
	if err := rc.client.Del(rc.ctx, keyPrefix+hash).Err(); err != nil {
		return fmt.Errorf("failed to delete Redis key: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
