// ABOUTME: Redis cache implementation using go-redis, with an optional RedisJSON mode
// ABOUTME: Lets several builders on different hosts share one snapshot store

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"digests-builder/core/interfaces"
	"digests-builder/pkg/config"
	"github.com/nitishm/go-rejson/v4"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements the Cache interface using Redis
type RedisCache struct {
	client *redis.Client

	// handler is set in JSON mode; values are then stored as RedisJSON
	// documents so they can be inspected with JSON.GET
	handler *rejson.Handler
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	cache := &RedisCache{client: client}
	if cfg.JSON {
		cache.handler = rejson.NewReJSONHandler()
		cache.handler.SetGoRedisClient(client)
	}
	return cache, nil
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.handler != nil {
		return c.getJSON(ctx, key)
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// rejson issues commands without a caller context, so cancellation is
// only checked up front
func (c *RedisCache) getJSON(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := c.handler.JSONGet(key, ".")
	if errors.Is(err, redis.Nil) || (err == nil && val == nil) {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	data, ok := val.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected JSON.GET reply %T for %s", val, key)
	}
	return data, nil
}

// Set stores a value in Redis with the given TTL; zero never expires
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.handler == nil {
		return c.client.Set(ctx, key, value, ttl).Err()
	}

	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not JSON, cannot store in JSON mode", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.handler.JSONSet(key, ".", json.RawMessage(value)); err != nil {
		return err
	}
	if ttl > 0 {
		return c.client.Expire(ctx, key, ttl).Err()
	}
	return c.client.Persist(ctx, key).Err()
}

// Delete removes a key from Redis; missing keys are not an error
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Keys returns the keys starting with prefix, using SCAN so large
// databases are not blocked
func (c *RedisCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, escapePattern(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// escapePattern quotes glob metacharacters for MATCH
func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
