package infra

import (
	"checkout-service/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedCatalog is a read-through redis cache in front of the catalog. A nil
// redis client turns it into a plain pass-through. Stock and wallet state is
// never cached here, only catalog prices and names.
type CachedCatalog struct {
	next CatalogClient
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedCatalog(next CatalogClient, rdb *redis.Client, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl}
}

func productKey(id uint64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id uint64) (*domain.Product, error) {
	key := productKey(id)

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			var p domain.Product
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return &p, nil
			}
		} else if err != redis.Nil {
			slog.Warn("product cache read failed", "product_id", id, "error", err)
		}
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil && p != nil {
		if data, err := json.Marshal(p); err == nil {
			c.rdb.Set(ctx, key, data, c.ttl)
		}
	}
	return p, nil
}

func (c *CachedCatalog) Invalidate(ctx context.Context, ids ...uint64) error {
	if c.rdb == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Warmup loads the given products into the cache, skipping failures.
func (c *CachedCatalog) Warmup(ctx context.Context, ids []uint64) error {
	if c.rdb == nil {
		return nil
	}
	for _, id := range ids {
		p, err := c.next.GetProduct(ctx, id)
		if err != nil {
			slog.Warn("cache warmup failed", "product_id", id, "error", err)
			continue
		}
		if p == nil {
			continue
		}
		if data, err := json.Marshal(p); err == nil {
			c.rdb.Set(ctx, productKey(id), data, c.ttl)
		}
	}
	return nil
}
