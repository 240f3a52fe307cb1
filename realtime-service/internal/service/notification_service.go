package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/audit"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
)

type notificationService struct {
	repo      repository.NotificationRepository
	emitter   Emitter
	publisher pubsub.Publisher
	cfg       config.ChatConfig
	now       func() time.Time
}

// NewNotificationService builds the fan-out. emitter may be nil, in which
// case notifications are only persisted.
func NewNotificationService(
	repo repository.NotificationRepository,
	emitter Emitter,
	publisher pubsub.Publisher,
	cfg config.ChatConfig,
	opts ...Option,
) NotificationService {
	o := newOptions(opts)
	if publisher == nil {
		publisher = pubsub.NoopPublisher{}
	}
	return &notificationService{
		repo:      repo,
		emitter:   emitter,
		publisher: publisher,
		cfg:       cfg,
		now:       o.now,
	}
}

// Notify writes the notification first; live delivery afterwards can fail
// without affecting the result.
func (s *notificationService) Notify(ctx context.Context, in domain.NotifyInput) (*domain.Notification, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.UserID == "":
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidNotification)
	case !in.Type.Valid():
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, in.Type)
	case in.Message == "":
		return nil, fmt.Errorf("%w: message is required", ErrInvalidNotification)
	}

	n := &domain.Notification{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Type:        in.Type,
		Message:     in.Message,
		URL:         in.URL,
		TaskID:      in.TaskID,
		BidID:       in.BidID,
		MilestoneID: in.MilestoneID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	audit.LogTarget(ctx, audit.ActionNotify, n.UserID, n.ID, string(n.Type))

	delivered := s.deliver(ctx, n)
	s.publish(ctx, n, delivered)
	return n, nil
}

// deliver never fails the caller: a missing emitter, an emit error and an
// emit panic are all logged and swallowed.
func (s *notificationService) deliver(ctx context.Context, n *domain.Notification) (delivered int) {
	l := log.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			l.Error().
				Str(log.FieldNotificationID, n.ID).
				Interface("panic", r).
				Msg("live notification delivery panicked")
			delivered = 0
		}
	}()

	if s.emitter == nil {
		l.Debug().Str(log.FieldNotificationID, n.ID).Msg("no live emitter, notification stored only")
		return 0
	}

	delivered, err := s.emitter.EmitToUser(n.UserID, domain.EventNewNotification, n)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldNotificationID, n.ID).Msg("live notification delivery failed")
		return 0
	}
	l.Debug().
		Str(log.FieldNotificationID, n.ID).
		Int("sockets", delivered).
		Msg("notification delivered")
	return delivered
}

func (s *notificationService) publish(ctx context.Context, n *domain.Notification, delivered int) {
	event, err := pubsub.NewEvent(pubsub.EventNotificationCreated, n.UserID, pubsub.NotificationCreatedPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Message:        n.Message,
		URL:            n.URL,
		Delivered:      delivered,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, pubsub.TopicNotifications, event)
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldNotificationID, n.ID).Msg("failed to publish notification event")
	}
}

func (s *notificationService) List(ctx context.Context, userID string, filter domain.NotificationFilter) (*domain.NotificationPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, filter.Type)
	}
	filter.Page, filter.Limit, _ = pageBounds(filter.Page, filter.Limit, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	if items == nil {
		items = []*domain.Notification{}
	}

	return &domain.NotificationPage{
		Notifications: items,
		Page:          filter.Page,
		Limit:         filter.Limit,
		Total:         total,
		TotalPages:    totalPages(total, filter.Limit),
		UnreadCount:   unread,
	}, nil
}

// MarkRead is idempotent for the owner and forbidden for anyone else.
func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	if n.UserID != userID {
		return nil, ErrForbidden
	}
	if n.IsRead {
		return n, nil
	}

	if _, err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.IsRead = true

	audit.LogTarget(ctx, audit.ActionNotificationRead, userID, n.ID, "notification marked read")
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	audit.LogWithDetail(ctx, audit.ActionNotificationsAll, userID, fmt.Sprintf("%d", count), "notifications marked read")
	return count, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
