package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProductCache memoises product-by-id lookups in Redis. It serves reads only;
// mutation paths always hit PostgreSQL and call Invalidate afterwards, so the
// cache is never authoritative for a stock or price decision.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache instantiates the cache helper.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func productKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}

// Get returns the cached product, with ok=false on miss or disabled cache.
func (c *ProductCache) Get(ctx context.Context, id int64) (Product, bool) {
	if c == nil || c.client == nil {
		return Product{}, false
	}
	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		return Product{}, false
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, false
	}
	return p, true
}

// Set stores the product.
func (c *ProductCache) Set(ctx context.Context, p Product) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(p.ID), raw, c.ttl).Err()
}

// Invalidate drops the cached entry for a product. Every ledger write against
// the product calls this.
func (c *ProductCache) Invalidate(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
