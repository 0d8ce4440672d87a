// Package cache provides the optional redis read-through cache for product
// documents. It is strictly best-effort: every failure degrades to a store
// read and is logged at debug level.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = 5 * time.Minute

func productKey(id string) string {
	return "catalog:product:" + id
}

type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewProductCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductCache{rdb: rdb, ttl: ttl, log: log}
}

// Get returns the cached document fields for id, or ok=false on miss or any
// redis/decoding failure.
func (c *ProductCache) Get(ctx context.Context, id string) (map[string]any, bool) {
	raw, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("product cache read failed", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func (c *ProductCache) Put(ctx context.Context, id string, fields map[string]any) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, productKey(id), raw, c.ttl).Err(); err != nil {
		c.log.Debug("product cache write failed", zap.String("id", id), zap.Error(err))
	}
}

// Invalidate removes a product from the cache after an admin write.
func (c *ProductCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, productKey(id)).Err(); err != nil {
		c.log.Debug("product cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
