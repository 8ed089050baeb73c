package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/models"
)

const (
	orderKeyPrefix        = "order:"
	availabilityKeyPrefix = "availability:listing:"
	defaultCacheTTL       = 5 * time.Minute

	// Availability snapshots go stale against wall-clock cutoffs, so
	// they get a much shorter TTL than order reads.
	availabilityTTL = 30 * time.Second
)

// RedisCache implements OrderCache and AvailabilityCache using Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var (
	_ OrderCache        = (*RedisCache)(nil)
	_ AvailabilityCache = (*RedisCache)(nil)
)

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, id string) (*models.Order, error) {
	key := orderKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", zap.String("order_id", id))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", zap.String("order_id", id))
	return &order, nil
}

func (c *RedisCache) Set(ctx context.Context, order *models.Order) error {
	key := orderKeyPrefix + order.ID

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", zap.String("order_id", order.ID), zap.Error(err))
		return err
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, orderKeyPrefix+id).Err(); err != nil {
		c.logger.Error("Cache delete error", zap.String("order_id", id), zap.Error(err))
		return err
	}
	return nil
}

func (c *RedisCache) GetListingAvailability(ctx context.Context, listingID string) (*models.ListingAvailability, error) {
	key := availabilityKeyPrefix + listingID

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var avail models.ListingAvailability
	if err := json.Unmarshal(data, &avail); err != nil {
		return nil, err
	}
	return &avail, nil
}

func (c *RedisCache) SetListingAvailability(ctx context.Context, avail *models.ListingAvailability) error {
	key := availabilityKeyPrefix + avail.ListingID

	data, err := json.Marshal(avail)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, availabilityTTL).Err()
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
