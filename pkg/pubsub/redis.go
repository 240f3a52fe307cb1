package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen bounds each stream when the config leaves it unset.
const DefaultStreamMaxLen = 100000

// RedisPublisher appends events to a Redis stream named after the topic.
// Streams keep events for consumers that were offline, which plain PUBLISH
// would drop. Each entry carries the event type, key and JSON body.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPublisherFromClient(client, cfg.StreamMaxLen), nil
}

// NewRedisPublisherFromClient wraps an existing client.
func NewRedisPublisherFromClient(client *redis.Client, maxLen int64) *RedisPublisher {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &RedisPublisher{client: client, maxLen: maxLen}
}

// Publish appends the event, trimming the stream approximately to maxLen.
func (r *RedisPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":  event.Type,
			"key":   event.Key,
			"event": data,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", topic, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
