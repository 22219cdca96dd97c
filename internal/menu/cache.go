package menu

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

const (
	DefaultCacheTTL = 5 * time.Minute

	allItemsKey   = "foodflow:menu:all"
	itemKeyPrefix = "foodflow:menu:item:"
)

// CachedCatalog is a read-through Redis cache in front of a Catalog.
// Concurrent misses for the same key share a single backend load, and any
// Redis failure falls back to the backend. A nil client disables Redis and
// keeps only the miss collapsing.
type CachedCatalog struct {
	next   Catalog
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

var _ Catalog = (*CachedCatalog)(nil)

func NewCachedCatalog(next Catalog, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) List(ctx context.Context) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	if c.lookup(ctx, allItemsKey, &items) {
		return items, nil
	}

	v, err, _ := c.group.Do(allItemsKey, func() (any, error) {
		// shared by every waiter, so one caller giving up must not fail the rest
		loadCtx := context.WithoutCancel(ctx)
		items, err := c.next.List(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store(loadCtx, allItemsKey, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.MenuItem)), nil
}

func (c *CachedCatalog) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	key := itemKeyPrefix + id

	var item domain.MenuItem
	if c.lookup(ctx, key, &item) {
		return &item, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		item, err := c.next.GetByID(loadCtx, id)
		if err != nil {
			return nil, err
		}
		// unknown ids are not cached so items added later show up
		if item != nil {
			c.store(loadCtx, key, item)
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}

	found := v.(*domain.MenuItem)
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

// lookup decodes a cached value into dst and reports whether it was found.
func (c *CachedCatalog) lookup(ctx context.Context, key string, dst any) bool {
	if c.rdb == nil {
		return false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "menu cache read failed", "error", err, "key", key)
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.WarnContext(ctx, "menu cache entry is corrupt", "error", err, "key", key)
		return false
	}
	return true
}

func (c *CachedCatalog) store(ctx context.Context, key string, value any) {
	if c.rdb == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode menu cache entry", "error", err, "key", key)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "menu cache write failed", "error", err, "key", key)
	}
}

// Invalidate drops every cached menu entry.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}

	var keys []string
	iter := c.rdb.Scan(ctx, 0, itemKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	keys = append(keys, allItemsKey)
	return c.rdb.Del(ctx, keys...).Err()
}
