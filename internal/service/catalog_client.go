package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NZSopa/orderdhash-sub001/internal/models"
	"github.com/NZSopa/orderdhash-sub001/internal/redisclient"
	"github.com/NZSopa/orderdhash-sub001/internal/store"
	"github.com/NZSopa/orderdhash-sub001/internal/util"
)

// CatalogClient resolves channel SKUs against the read-only catalog
// table, with a Redis read-through cache in front of the database.
type CatalogClient struct {
	store    *store.Store
	redis    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogClient creates a new catalog client
func NewCatalogClient(store *store.Store, redis *redisclient.Client, cacheTTL time.Duration) *CatalogClient {
	return &CatalogClient{
		store:    store,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ResolveSKU returns the catalog entry for a channel sales code, serving
// from cache when possible. Unknown SKUs return a NotFoundError.
func (c *CatalogClient) ResolveSKU(ctx context.Context, sku string) (*models.CatalogEntry, error) {
	if c.redis != nil {
		entry, err := c.redis.GetCatalogEntry(ctx, sku)
		if err != nil {
			c.logger.Warn("Catalog cache read failed", zap.String("sku", sku), zap.Error(err))
		} else if entry != nil {
			return entry, nil
		}
	}

	entry, err := c.store.GetCatalogEntry(ctx, sku)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		if err := c.redis.SetCatalogEntry(ctx, entry, c.cacheTTL); err != nil {
			c.logger.Warn("Catalog cache write failed", zap.String("sku", sku), zap.Error(err))
		}
	}
	return entry, nil
}

// WarmCache loads the whole catalog into Redis at startup.
func (c *CatalogClient) WarmCache(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}

	entries, err := c.store.ListCatalogEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list catalog entries: %w", err)
	}

	if err := c.redis.SetCatalogEntries(ctx, entries, c.cacheTTL); err != nil {
		return fmt.Errorf("failed to warm catalog cache: %w", err)
	}

	c.logger.Info("Catalog cache warmed", zap.Int("entries", len(entries)))
	return nil
}
