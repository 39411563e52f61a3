package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/boxoffice/checkout/internal/domain"
	"github.com/boxoffice/checkout/internal/platform/config"
)

// RedisBreakdownCache stores breakdowns as JSON documents in Redis.
type RedisBreakdownCache struct {
	client *redis.Client
}

func NewRedisBreakdownCache(cfg config.RedisConfig) *RedisBreakdownCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisBreakdownCache{client: client}
}

func (c *RedisBreakdownCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBreakdownCache) Close() error {
	return c.client.Close()
}

func (c *RedisBreakdownCache) Get(ctx context.Context, key string) (domain.FinancialBreakdown, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FinancialBreakdown{}, false, nil
	}
	if err != nil {
		return domain.FinancialBreakdown{}, false, fmt.Errorf("cache: redis get: %w", err)
	}

	var breakdown domain.FinancialBreakdown
	if err := json.Unmarshal(val, &breakdown); err != nil {
		return domain.FinancialBreakdown{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return breakdown, true, nil
}

func (c *RedisBreakdownCache) Set(ctx context.Context, key string, value domain.FinancialBreakdown, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}
