package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores artifacts in Redis, sharing them across instances.
type RedisCache struct {
	client *redis.Client
	config Config
	prefix string
}

var _ Cache = (*RedisCache)(nil)

// redisEntry is the JSON wire form of an Entry.
type redisEntry struct {
	Key       string        `json:"key"`
	Operation string        `json:"operation"`
	Filename  string        `json:"filename"`
	Body      []byte        `json:"body"`
	StoredAt  time.Time     `json:"stored_at"`
	TTL       time.Duration `json:"ttl"`
}

// NewRedis creates a Redis-backed cache with the provided client.
func NewRedis(client *redis.Client, config Config) *RedisCache {
	config = applyDefaults(config)

	return &RedisCache{
		client: client,
		config: config,
		prefix: config.Prefix,
	}
}

// Get retrieves an entry from Redis. Returns nil when absent.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.makeKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var wire redisEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return &Entry{
		Key:       wire.Key,
		Operation: wire.Operation,
		Filename:  wire.Filename,
		Body:      wire.Body,
		StoredAt:  wire.StoredAt,
		TTL:       wire.TTL,
	}, nil
}

// Set stores an entry in Redis, letting Redis expire it at the TTL.
func (c *RedisCache) Set(ctx context.Context, entry *Entry) error {
	ttl := entry.TTL
	if ttl == 0 {
		ttl = c.config.TTL
	}
	storedAt := entry.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	data, err := json.Marshal(redisEntry{
		Key:       entry.Key,
		Operation: entry.Operation,
		Filename:  entry.Filename,
		Body:      entry.Body,
		StoredAt:  storedAt,
		TTL:       ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := c.client.Set(ctx, c.makeKey(entry.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Delete removes an entry from Redis.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Clear removes all entries with the configured prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	pattern := c.prefix + "*"

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear failed: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}

	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (c *RedisCache) Close() error {
	return nil
}

func (c *RedisCache) makeKey(key string) string {
	return c.prefix + key
}
