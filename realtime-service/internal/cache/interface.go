package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// SummaryCache stores the sender summaries embedded in broadcasts.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.UserSummary, error)
	Set(ctx context.Context, key string, summary *domain.UserSummary, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKeyByID(userID string) string
	Close() error
}

// NoopCache always misses. Used when no redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.UserSummary, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(context.Context, string, *domain.UserSummary, time.Duration) error {
	return nil
}

func (NoopCache) Delete(context.Context, ...string) error {
	return nil
}

func (NoopCache) BuildKeyByID(userID string) string {
	return userID
}

func (NoopCache) Close() error {
	return nil
}
