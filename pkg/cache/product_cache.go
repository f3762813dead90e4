package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/redis"
)

// DefaultProductTTL bounds staleness of cached product reads.
const DefaultProductTTL = 5 * time.Minute

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// ProductCache is a read-through cache over product rows. Writes to a
// product must call Invalidate in the same code path; a miss is never
// an error, only a signal to hit the database.
type ProductCache struct {
	store store
	ttl   time.Duration
	logg  *logger.Logger
}

// NewProductCache wires the cache over the shared redis client.
func NewProductCache(client *redis.Client, ttl time.Duration, logg *logger.Logger) (*ProductCache, error) {
	if client == nil {
		return nil, errors.New("cache: redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &ProductCache{store: client, ttl: ttl, logg: logg}, nil
}

// Get returns the cached product, or (nil, false) on a miss or any
// cache-side failure.
func (c *ProductCache) Get(ctx context.Context, productID uuid.UUID) (*models.Product, bool) {
	raw, err := c.store.Get(ctx, c.key(productID))
	if err != nil {
		if !errors.Is(err, goredis.Nil) && c.logg != nil {
			c.logg.Warn(c.logg.WithProductID(ctx, productID.String()), "product cache read failed: "+err.Error())
		}
		return nil, false
	}
	var product models.Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		// Corrupt entry, drop it so the next read repopulates.
		_ = c.store.Del(ctx, c.key(productID))
		return nil, false
	}
	return &product, true
}

// Put stores the product snapshot. Failures are logged, not surfaced.
func (c *ProductCache) Put(ctx context.Context, product *models.Product) {
	if product == nil {
		return
	}
	raw, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.key(product.ID), string(raw), c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithProductID(ctx, product.ID.String()), "product cache write failed: "+err.Error())
	}
}

// Invalidate drops cached entries for the given products. Stock,
// price, discount and availability writes all route through here.
func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...uuid.UUID) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, c.key(id))
	}
	if err := c.store.Del(ctx, keys...); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "product cache invalidation failed: "+err.Error())
	}
}

func (c *ProductCache) key(productID uuid.UUID) string {
	return c.store.CacheKey("product", productID.String())
}
