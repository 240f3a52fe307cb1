package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/cache"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
)

// UserDirectory resolves sender summaries through the cache.
type UserDirectory struct {
	users repository.UserRepository
	cache cache.SummaryCache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewUserDirectory(users repository.UserRepository, c cache.SummaryCache, ttl time.Duration) *UserDirectory {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &UserDirectory{users: users, cache: c, ttl: ttl}
}

// Summary returns the user's summary. Concurrent misses for one user share a
// single store read.
func (d *UserDirectory) Summary(ctx context.Context, userID string) (*domain.UserSummary, error) {
	key := d.cache.BuildKeyByID(userID)

	cached, err := d.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	shared := context.WithoutCancel(ctx)
	result, err, _ := d.sf.Do(key, func() (interface{}, error) {
		user, err := d.users.GetByID(shared, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		summary := user.Summary()
		d.store(shared, summary)
		return summary, nil
	})
	if err != nil {
		return nil, err
	}

	summary, ok := result.(*domain.UserSummary)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return summary, nil
}

// Summaries resolves many users at once. Unknown ids map to a bare summary
// carrying only the id.
func (d *UserDirectory) Summaries(ctx context.Context, ids []string) (map[string]*domain.UserSummary, error) {
	out := make(map[string]*domain.UserSummary, len(ids))
	var missing []string
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		cached, err := d.cache.Get(ctx, d.cache.BuildKeyByID(id))
		if err != nil {
			out[id] = nil
			missing = append(missing, id)
			continue
		}
		out[id] = cached
	}

	if len(missing) > 0 {
		users, err := d.users.GetByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		for _, u := range users {
			summary := u.Summary()
			out[u.ID] = summary
			d.store(ctx, summary)
		}
	}

	for id, s := range out {
		if s == nil {
			out[id] = &domain.UserSummary{ID: id}
		}
	}
	return out, nil
}

func (d *UserDirectory) store(ctx context.Context, summary *domain.UserSummary) {
	if err := d.cache.Set(ctx, d.cache.BuildKeyByID(summary.ID), summary, d.ttl); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache set error")
	}
}
