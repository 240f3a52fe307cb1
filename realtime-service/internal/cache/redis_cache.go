package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

type RedisSummaryCache struct {
	client *redis.Client
	prefix string
}

func NewRedisSummaryCache(cfg config.RedisConfig, prefix string) (*RedisSummaryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSummaryCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *RedisSummaryCache) BuildKeyByID(userID string) string {
	return fmt.Sprintf("%s:summary:%s", c.prefix, userID)
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*domain.UserSummary, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var summary domain.UserSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &summary, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, key string, summary *domain.UserSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisSummaryCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	return nil
}

func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}
