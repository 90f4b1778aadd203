// Package redisclient wraps the shared Redis connection. It serves as a
// read-through cache for catalog lookups and provides the advisory lock
// used by shipment number generation.
package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func catalogKey(sku string) string {
	return fmt.Sprintf("catalog:%s", sku)
}

// GetCatalogEntry returns the cached catalog entry for sku, or (nil, nil)
// on a cache miss.
func (c *Client) GetCatalogEntry(ctx context.Context, sku string) (*models.CatalogEntry, error) {
	raw, err := c.rdb.Get(ctx, catalogKey(sku)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog cache get failed: %w", err)
	}

	var entry models.CatalogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("catalog cache entry corrupt: %w", err)
	}
	return &entry, nil
}

// SetCatalogEntry caches a catalog entry with the given TTL.
func (c *Client) SetCatalogEntry(ctx context.Context, entry *models.CatalogEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog entry: %w", err)
	}
	return c.rdb.Set(ctx, catalogKey(entry.SalesCode), raw, ttl).Err()
}

// SetCatalogEntries caches a batch of entries in one pipeline.
func (c *Client) SetCatalogEntries(ctx context.Context, entries []models.CatalogEntry, ttl time.Duration) error {
	pipe := c.rdb.Pipeline()
	for i := range entries {
		raw, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("failed to marshal catalog entry %s: %w", entries[i].SalesCode, err)
		}
		pipe.Set(ctx, catalogKey(entries[i].SalesCode), raw, ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
