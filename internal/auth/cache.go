package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// MembershipCache stores chat member statuses for a limited time.
type MembershipCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, chatID, userID int64) (status string, ok bool, err error)
	Set(ctx context.Context, chatID, userID int64, status string) error
}

func cacheKey(chatID, userID int64) string {
	return fmt.Sprintf("membership:%d:%d", chatID, userID)
}

// MemoryCache is an in-process TTL cache holding at most maxItems entries.
type MemoryCache struct {
	cache    *cache.Cache
	maxItems int
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration, maxItems int) *MemoryCache {
	return &MemoryCache{
		cache:    cache.New(ttl, ttl*2),
		maxItems: maxItems,
	}
}

func (c *MemoryCache) Get(_ context.Context, chatID, userID int64) (string, bool, error) {
	v, ok := c.cache.Get(cacheKey(chatID, userID))
	if !ok {
		return "", false, nil
	}
	status, ok := v.(string)
	return status, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, chatID, userID int64, status string) error {
	if c.maxItems > 0 && c.cache.ItemCount() >= c.maxItems {
		c.evict()
	}
	c.cache.SetDefault(cacheKey(chatID, userID), status)
	return nil
}

// evict drops expired entries and, if the cache is still full, the entry
// closest to expiry.
func (c *MemoryCache) evict() {
	c.cache.DeleteExpired()
	if c.cache.ItemCount() < c.maxItems {
		return
	}
	var oldestKey string
	var oldest int64
	for key, item := range c.cache.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey, oldest = key, item.Expiration
		}
	}
	if oldestKey != "" {
		c.cache.Delete(oldestKey)
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// RedisCache shares membership statuses between bot instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("Successfully connected to Redis membership cache")
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, chatID, userID int64) (string, bool, error) {
	status, err := c.client.Get(ctx, cacheKey(chatID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read membership from Redis: %w", err)
	}
	return status, true, nil
}

func (c *RedisCache) Set(ctx context.Context, chatID, userID int64, status string) error {
	if err := c.client.Set(ctx, cacheKey(chatID, userID), status, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write membership to Redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
