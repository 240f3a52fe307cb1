package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/audit"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/hub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
)

type chatService struct {
	rooms         Multiplexer
	gate          *RoomGate
	directory     *UserDirectory
	conversations ConversationService
	notifier      Notifier
	publisher     pubsub.Publisher
	cfg           config.ChatConfig
	now           func() time.Time
	ids           IDGenerator
}

func NewChatService(
	rooms Multiplexer,
	gate *RoomGate,
	directory *UserDirectory,
	conversations ConversationService,
	notifier Notifier,
	publisher pubsub.Publisher,
	cfg config.ChatConfig,
	opts ...Option,
) ChatService {
	o := newOptions(opts)
	if publisher == nil {
		publisher = pubsub.NoopPublisher{}
	}
	return &chatService{
		rooms:         rooms,
		gate:          gate,
		directory:     directory,
		conversations: conversations,
		notifier:      notifier,
		publisher:     publisher,
		cfg:           cfg,
		now:           o.now,
		ids:           o.ids,
	}
}

func (s *chatService) HandleJoin(ctx context.Context, c *hub.Client, ref domain.ThreadRef) error {
	ok, err := s.gate.AuthorizeJoin(ctx, c.UserID(), ref)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidThread) {
			return s.replyError(c, domain.ErrCodeBadRequest, err.Error())
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, ref.RoomKey()).Msg("join authorization failed")
		return s.replyError(c, domain.ErrCodeInternalError, "Failed to join room")
	}
	if !ok {
		audit.LogTarget(ctx, audit.ActionJoinDenied, c.UserID(), ref.RoomKey(), "join denied")
		return s.replyError(c, domain.ErrCodeForbidden, "Not a participant of this "+string(ref.Kind))
	}

	if !s.rooms.Join(c, ref.RoomKey()) {
		return nil
	}
	audit.LogTarget(ctx, audit.ActionJoinRoom, c.UserID(), ref.RoomKey(), "joined room")
	return s.rooms.Send(c, domain.EventJoinedRoom, domain.NewRoomPayload(ref))
}

func (s *chatService) HandleLeave(ctx context.Context, c *hub.Client, ref domain.ThreadRef) error {
	if err := ref.Validate(); err != nil {
		return s.replyError(c, domain.ErrCodeBadRequest, err.Error())
	}
	if !s.rooms.Leave(c, ref.RoomKey()) {
		return s.replyError(c, domain.ErrCodeNotInRoom, "Not in this room")
	}
	audit.LogTarget(ctx, audit.ActionLeaveRoom, c.UserID(), ref.RoomKey(), "left room")
	return s.rooms.Send(c, domain.EventLeftRoom, domain.NewRoomPayload(ref))
}

func (s *chatService) HandleSendMessage(ctx context.Context, c *hub.Client, req *domain.SendMessageRequest) error {
	if _, err := s.SendMessage(ctx, c.Identity, req); err != nil {
		code, msg := socketError(err)
		if code == domain.ErrCodeInternalError {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("send message failed")
		}
		return s.replyError(c, code, msg)
	}
	return nil
}

func (s *chatService) HandleMarkAsRead(ctx context.Context, c *hub.Client, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return s.replyError(c, domain.ErrCodeBadRequest, "conversationId is required")
	}

	readAt, err := s.conversations.MarkAsRead(ctx, c.UserID(), conversationID)
	if err != nil {
		code, msg := socketError(err)
		if code == domain.ErrCodeInternalError {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("mark as read failed")
		}
		return s.replyError(c, code, msg)
	}

	payload := &domain.MessagesReadPayload{
		UserID:         c.UserID(),
		ConversationID: conversationID,
		ReadAt:         readAt,
	}
	room := domain.ConversationRef(conversationID).RoomKey()
	if _, err := s.rooms.EmitToRoom(room, domain.EventMessagesRead, payload); err != nil {
		return err
	}
	if !s.rooms.InRoom(c, room) {
		return s.rooms.Send(c, domain.EventMessagesRead, payload)
	}
	return nil
}

// HandleTyping relays to the rest of the room. Only joined sockets may type;
// nothing is stored.
func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, ref domain.ThreadRef, typing bool) error {
	if err := ref.Validate(); err != nil {
		return s.replyError(c, domain.ErrCodeBadRequest, err.Error())
	}
	room := ref.RoomKey()
	if !s.rooms.InRoom(c, room) {
		return s.replyError(c, domain.ErrCodeNotInRoom, "Join the room before typing")
	}

	event := domain.EventUserStoppedTyping
	if typing {
		event = domain.EventUserTyping
	}
	_, err := s.rooms.EmitToRoomExcept(room, event, domain.NewTypingPayload(c.UserID(), ref), c.ID)
	return err
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	audit.LogWithDetail(ctx, audit.ActionDisconnect, c.UserID(),
		time.Since(c.ConnectedAt).Round(time.Second).String(), "client disconnected")
}

func (s *chatService) Authorize(ctx context.Context, userID string, ref domain.ThreadRef) error {
	allowed, err := s.gate.AuthorizeJoin(ctx, userID, ref)
	if err != nil {
		return err
	}
	if !allowed {
		audit.LogTarget(ctx, audit.ActionSendDenied, userID, ref.RoomKey(), "send denied")
		return ErrNotParticipant
	}
	return nil
}

// SendMessage validates, authorizes, persists and then broadcasts. Nothing is
// broadcast unless the write succeeded.
func (s *chatService) SendMessage(ctx context.Context, sender *domain.Identity, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	l := log.Ctx(ctx)

	ref := req.Thread()
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: conversationId or taskId is required", ErrInvalidMessage)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}
	if limit := s.cfg.MaxContentLength; limit > 0 && utf8.RuneCountInString(content) > limit {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidMessage, limit)
	}
	msgType, ok := domain.ParseMessageType(req.MessageType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, req.MessageType)
	}

	store, err := s.gate.Store(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := s.Authorize(ctx, sender.UserID, ref); err != nil {
		return nil, err
	}

	now := s.now()
	id, err := s.ids.Generate(now)
	if err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:        id,
		Thread:    ref,
		SenderID:  sender.UserID,
		Content:   content,
		Type:      msgType,
		CreatedAt: now,
	}
	if err := store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotParticipant) {
			audit.LogTarget(ctx, audit.ActionSendDenied, sender.UserID, ref.RoomKey(), "participation revoked before write")
			return nil, ErrNotParticipant
		}
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	audit.LogTarget(ctx, audit.ActionSendMessage, sender.UserID, msg.ID, ref.RoomKey())

	summary, err := s.directory.Summary(ctx, sender.UserID)
	if err != nil {
		l.Warn().Err(err).Msg("sender summary unavailable")
		summary = &domain.UserSummary{ID: sender.UserID, Name: sender.Name, Role: sender.Role}
	}
	resp := msg.ToResponse(summary)

	if _, err := s.rooms.EmitToRoom(ref.RoomKey(), ref.Kind.MessageEvent(), resp); err != nil {
		l.Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("broadcast failed")
	}

	if ref.Kind.NotifiesOnMessage() {
		s.notifyParticipants(ctx, ref, msg, summary)
	}
	s.publishMessage(ctx, msg)

	return resp, nil
}

// notifyParticipants tells everyone but the sender about a task message.
func (s *chatService) notifyParticipants(ctx context.Context, ref domain.ThreadRef, msg *domain.Message, sender *domain.UserSummary) {
	l := log.Ctx(ctx)
	if s.notifier == nil {
		return
	}

	participants, err := s.gate.Participants(ctx, ref)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldThreadID, ref.ID).Msg("failed to load participants for notification")
		return
	}

	name := sender.Name
	if name == "" {
		name = "a participant"
	}
	for _, userID := range participants {
		if userID == msg.SenderID {
			continue
		}
		_, err := s.notifier.Notify(ctx, domain.NotifyInput{
			UserID:  userID,
			Type:    domain.NotificationNewMessage,
			Message: "New message from " + name,
			URL:     "/tasks/" + ref.ID,
			TaskID:  ref.ID,
		})
		if err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to notify participant")
		}
	}
}

func (s *chatService) publishMessage(ctx context.Context, msg *domain.Message) {
	event, err := pubsub.NewEvent(pubsub.EventMessageCreated, msg.Thread.RoomKey(), pubsub.MessageCreatedPayload{
		MessageID:   msg.ID,
		ThreadKind:  string(msg.Thread.Kind),
		ThreadID:    msg.Thread.ID,
		SenderID:    msg.SenderID,
		MessageType: string(msg.Type),
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt.UnixMilli(),
	})
	if err == nil {
		err = s.publisher.Publish(ctx, pubsub.TopicMessages, event)
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to publish message event")
	}
}

func (s *chatService) replyError(c *hub.Client, code, message string) error {
	return s.rooms.Send(c, domain.EventError, domain.NewErrorMessage(code, message))
}

// socketError maps a service error onto an error frame.
func socketError(err error) (string, string) {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return domain.ErrCodeBadRequest, err.Error()
	case errors.Is(err, ErrNotParticipant):
		return domain.ErrCodeForbidden, err.Error()
	default:
		return domain.ErrCodeInternalError, "Internal error"
	}
}
