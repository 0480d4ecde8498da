package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/example/orderdesk/pkg/models"
	"go.uber.org/zap"
)

// CacheStore is a JSON key/value store with expiry, such as Redis.
type CacheStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Cached is a read-through cache in front of another Catalog. Cache errors
// never fail a lookup; they only cost a trip to the wrapped catalog.
type Cached struct {
	next   Catalog
	store  CacheStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Catalog, store CacheStore, ttl time.Duration, logger *zap.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

func readThrough[T any](ctx context.Context, c *Cached, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	var hit []T
	err := c.store.GetJSON(ctx, key, &hit)
	if err == nil {
		return hit, nil
	}
	c.logger.Debug("Catalog cache miss", zap.String("key", key), zap.Error(err))

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.SetJSON(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("Failed to cache catalog lookup", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (c *Cached) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	return readThrough(ctx, c, fmt.Sprintf("catalog:customers:%s", query), func(ctx context.Context) ([]models.Customer, error) {
		return c.next.ListCustomers(ctx, query)
	})
}

func (c *Cached) ListRestaurants(ctx context.Context, query string) ([]models.Restaurant, error) {
	return readThrough(ctx, c, fmt.Sprintf("catalog:restaurants:%s", query), func(ctx context.Context) ([]models.Restaurant, error) {
		return c.next.ListRestaurants(ctx, query)
	})
}

func (c *Cached) ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	return readThrough(ctx, c, fmt.Sprintf("catalog:restaurant:%s:menus", restaurantID), func(ctx context.Context) ([]models.Menu, error) {
		return c.next.ListMenus(ctx, restaurantID)
	})
}

func (c *Cached) ListCategories(ctx context.Context, menuID string) ([]models.Category, error) {
	return readThrough(ctx, c, fmt.Sprintf("catalog:menu:%s:categories", menuID), func(ctx context.Context) ([]models.Category, error) {
		return c.next.ListCategories(ctx, menuID)
	})
}

func (c *Cached) ListMenuItems(ctx context.Context, menuID string) ([]models.MenuItem, error) {
	return readThrough(ctx, c, fmt.Sprintf("catalog:menu:%s:items", menuID), func(ctx context.Context) ([]models.MenuItem, error) {
		return c.next.ListMenuItems(ctx, menuID)
	})
}
