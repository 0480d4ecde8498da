package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/orderdesk/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const orderCacheTTL = 30 * time.Minute

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SetJSON stores value JSON-encoded under key.
func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON decodes the value under key into dest. A missing key returns
// redis.Nil.
func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// OrderCache is the status view of a placed order.
type OrderCache struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	RestaurantID string          `json:"restaurant_id"`
	Status       string          `json:"status"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

func orderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}

func (r *RedisRepository) CacheOrder(ctx context.Context, order *OrderCache) error {
	return r.SetJSON(ctx, orderKey(order.ID), order, orderCacheTTL)
}

func (r *RedisRepository) GetOrderCache(ctx context.Context, orderID string) (*OrderCache, error) {
	var order OrderCache
	if err := r.GetJSON(ctx, orderKey(orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}
