package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CustomerCache memoises customer-by-id lookups. Reads only; every credit
// mutation invalidates the entry, and mutation transactions never consult it.
type CustomerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCustomerCache instantiates the cache helper.
func NewCustomerCache(client *redis.Client, ttl time.Duration) *CustomerCache {
	return &CustomerCache{client: client, ttl: ttl}
}

func customerKey(id int64) string {
	return fmt.Sprintf("credit:customer:%d", id)
}

// Get returns the cached customer, with ok=false on miss or disabled cache.
func (c *CustomerCache) Get(ctx context.Context, id int64) (Customer, bool) {
	if c == nil || c.client == nil {
		return Customer{}, false
	}
	raw, err := c.client.Get(ctx, customerKey(id)).Bytes()
	if err != nil {
		return Customer{}, false
	}
	var cust Customer
	if err := json.Unmarshal(raw, &cust); err != nil {
		return Customer{}, false
	}
	return cust, true
}

// Set stores the customer.
func (c *CustomerCache) Set(ctx context.Context, cust Customer) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(cust)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, customerKey(cust.ID), raw, c.ttl).Err()
}

// Invalidate drops the cached entry for a customer.
func (c *CustomerCache) Invalidate(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, customerKey(id)).Err()
}
