package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisProductCache keeps the hot per-SKU product lookup in Redis.
// SQLite remains the durable copy; entries here expire after the
// configured TTL so stale mirrors are re-read from the database.
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	return redis.NewClient(options)
}

func NewRedisProductCache(client *redis.Client, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{client: client, ttl: ttl}
}

func productKey(site, sku string) string {
	return fmt.Sprintf("product:%s:%s", site, sku)
}

func (r *RedisProductCache) Get(ctx context.Context, site, sku string) (*models.CachedProduct, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, productKey(site, sku)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product from redis: %w", err)
	}

	var product models.CachedProduct
	if err := json.Unmarshal([]byte(val), &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &product, nil
}

func (r *RedisProductCache) Set(ctx context.Context, product *models.CachedProduct) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := r.client.Set(ctx, productKey(product.Site, product.SKU), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set product in redis: %w", err)
	}
	return nil
}

func (r *RedisProductCache) Invalidate(ctx context.Context, site, sku string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, productKey(site, sku)).Err(); err != nil {
		return fmt.Errorf("failed to delete product from redis: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
