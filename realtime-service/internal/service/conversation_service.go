package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/audit"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
)

// listConcurrency bounds the per-conversation queries of one listing.
const listConcurrency = 4

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	gate          *RoomGate
	directory     *UserDirectory
	publisher     pubsub.Publisher
	cfg           config.ChatConfig
	now           func() time.Time
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	gate *RoomGate,
	directory *UserDirectory,
	publisher pubsub.Publisher,
	cfg config.ChatConfig,
	opts ...Option,
) ConversationService {
	o := newOptions(opts)
	if publisher == nil {
		publisher = pubsub.NoopPublisher{}
	}
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		gate:          gate,
		directory:     directory,
		publisher:     publisher,
		cfg:           cfg,
		now:           o.now,
	}
}

// CreateConversation opens a thread between the creator and participantIDs.
// Everyone starts with nothing unread.
func (s *conversationService) CreateConversation(ctx context.Context, creatorID string, participantIDs []string) (*domain.ConversationSummary, error) {
	ids := []string{creatorID}
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range participantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: at least one other participant is required", ErrInvalidConversation)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if len(users) != len(ids) {
		found := make(map[string]struct{}, len(users))
		for _, u := range users {
			found[u.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
			}
		}
	}

	now := s.now()
	conv := &domain.Conversation{CreatedAt: now, UpdatedAt: now}
	for _, id := range ids {
		conv.Participants = append(conv.Participants, domain.Participant{
			UserID:     id,
			LastReadAt: now,
			JoinedAt:   now,
		})
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	audit.LogTarget(ctx, audit.ActionCreateConv, creatorID, conv.ID, "conversation created")

	summary := &domain.ConversationSummary{
		ID:         conv.ID,
		LastReadAt: now,
		UpdatedAt:  conv.UpdatedAt,
	}
	for _, u := range users {
		summary.Participants = append(summary.Participants, u.Summary())
	}
	return summary, nil
}

// ListConversations returns the user's threads, most recently active first,
// each with its last message and the caller's unread count.
func (s *conversationService) ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var memberIDs []string
	for _, c := range convs {
		for _, p := range c.Participants {
			memberIDs = append(memberIDs, p.UserID)
		}
	}
	summaries, err := s.directory.Summaries(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ConversationSummary, len(convs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, c := range convs {
		i, c := i, c
		g.Go(func() error {
			summary, err := s.summarize(gCtx, userID, c, summaries)
			if err != nil {
				return err
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *conversationService) summarize(ctx context.Context, userID string, c *domain.Conversation, summaries map[string]*domain.UserSummary) (*domain.ConversationSummary, error) {
	ref := domain.ConversationRef(c.ID)
	summary := &domain.ConversationSummary{
		ID:           c.ID,
		Participants: make([]*domain.UserSummary, 0, len(c.Participants)),
		UpdatedAt:    c.UpdatedAt,
	}
	for _, p := range c.Participants {
		summary.Participants = append(summary.Participants, summaries[p.UserID])
		if p.UserID == userID {
			summary.LastReadAt = p.LastReadAt
		}
	}

	last, err := s.messages.Latest(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load last message: %w", err)
	}
	if last != nil {
		summary.LastMessage = last.ToResponse(summaries[last.SenderID])
	}

	unread, err := s.messages.CountUnread(ctx, ref, userID, summary.LastReadAt)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread: %w", err)
	}
	summary.UnreadCount = unread
	return summary, nil
}

// GetConversationMessages pages the history and marks the thread read for
// the caller.
func (s *conversationService) GetConversationMessages(ctx context.Context, userID, conversationID string, page, limit int) (*domain.MessagePage, error) {
	if _, err := s.participant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	result, err := s.history(ctx, domain.ConversationRef(conversationID), page, limit)
	if err != nil {
		return nil, err
	}

	if err := s.conversations.UpdateLastRead(ctx, conversationID, userID, s.now()); err != nil {
		// The page is still returned; the thread stays unread.
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldThreadID, conversationID).Msg("failed to update last read")
	}
	return result, nil
}

// GetThreadMessages pages the history of any thread without touching read state.
func (s *conversationService) GetThreadMessages(ctx context.Context, userID string, ref domain.ThreadRef, page, limit int) (*domain.MessagePage, error) {
	ok, err := s.gate.AuthorizeJoin(ctx, userID, ref)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidThread) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}
	return s.history(ctx, ref, page, limit)
}

// history reads newest first and returns the page in display order.
func (s *conversationService) history(ctx context.Context, ref domain.ThreadRef, page, limit int) (*domain.MessagePage, error) {
	page, limit, offset := pageBounds(page, limit, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	msgs, total, err := s.messages.ListByThread(ctx, ref, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	senderIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := s.directory.Summaries(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.MessageResponse, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m.ToResponse(senders[m.SenderID])
	}

	return &domain.MessagePage{
		Messages:   out,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
	}, nil
}

// MarkAsRead moves the caller's read marker to now and returns it.
func (s *conversationService) MarkAsRead(ctx context.Context, userID, conversationID string) (time.Time, error) {
	readAt := s.now()
	if err := s.conversations.UpdateLastRead(ctx, conversationID, userID, readAt); err != nil {
		if errors.Is(err, repository.ErrNotParticipant) {
			return time.Time{}, ErrNotParticipant
		}
		return time.Time{}, fmt.Errorf("failed to mark conversation read: %w", err)
	}

	audit.LogTarget(ctx, audit.ActionMarkRead, userID, conversationID, "conversation marked read")

	event, err := pubsub.NewEvent(pubsub.EventMessagesRead, conversationID, pubsub.MessagesReadPayload{
		ConversationID: conversationID,
		UserID:         userID,
		ReadAt:         readAt.UnixMilli(),
	})
	if err == nil {
		err = s.publisher.Publish(ctx, pubsub.TopicMessages, event)
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to publish messages read event")
	}
	return readAt, nil
}

// UnreadCount counts other participants' messages after the caller's marker.
func (s *conversationService) UnreadCount(ctx context.Context, userID, conversationID string) (int64, error) {
	p, err := s.participant(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err := s.messages.CountUnread(ctx, domain.ConversationRef(conversationID), userID, p.LastReadAt)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

func (s *conversationService) participant(ctx context.Context, conversationID, userID string) (*domain.Participant, error) {
	p, err := s.conversations.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotParticipant) {
			return nil, ErrNotParticipant
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	return p, nil
}
