package service

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/hub"
)

var (
	ErrNotParticipant       = errors.New("not a participant")
	ErrInvalidMessage       = domain.ErrInvalidMessage
	ErrInvalidConversation  = errors.New("invalid conversation")
	ErrInvalidNotification  = domain.ErrInvalidNotification
	ErrNotificationNotFound = errors.New("notification not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUserNotFound         = errors.New("user not found")
	ErrAttachmentTooLarge   = errors.New("attachment too large")
)

// Emitter is the live-delivery boundary. Services never reach a socket
// server directly; the hub is injected through this interface.
type Emitter interface {
	EmitToRoom(room, event string, payload interface{}) (int, error)
	EmitToUser(userID, event string, payload interface{}) (int, error)
}

// Multiplexer is the part of the hub the socket handlers drive.
type Multiplexer interface {
	Emitter
	Join(client *hub.Client, room string) bool
	Leave(client *hub.Client, room string) bool
	InRoom(client *hub.Client, room string) bool
	Send(client *hub.Client, event string, payload interface{}) error
	EmitToRoomExcept(room, event string, payload interface{}, exceptID string) (int, error)
}

// Notifier persists a notification and delivers it when the user is online.
type Notifier interface {
	Notify(ctx context.Context, input domain.NotifyInput) (*domain.Notification, error)
}

type ChatService interface {
	HandleJoin(ctx context.Context, client *hub.Client, ref domain.ThreadRef) error
	HandleLeave(ctx context.Context, client *hub.Client, ref domain.ThreadRef) error
	HandleSendMessage(ctx context.Context, client *hub.Client, req *domain.SendMessageRequest) error
	HandleMarkAsRead(ctx context.Context, client *hub.Client, conversationID string) error
	HandleTyping(ctx context.Context, client *hub.Client, ref domain.ThreadRef, typing bool) error
	HandleDisconnect(ctx context.Context, client *hub.Client)

	// Authorize reports ErrNotParticipant when userID may not post to ref.
	Authorize(ctx context.Context, userID string, ref domain.ThreadRef) error

	// SendMessage is the shared pipeline behind the socket and REST entry points.
	SendMessage(ctx context.Context, sender *domain.Identity, req *domain.SendMessageRequest) (*domain.MessageResponse, error)
}

type ConversationService interface {
	CreateConversation(ctx context.Context, creatorID string, participantIDs []string) (*domain.ConversationSummary, error)
	ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error)
	GetConversationMessages(ctx context.Context, userID, conversationID string, page, limit int) (*domain.MessagePage, error)
	GetThreadMessages(ctx context.Context, userID string, ref domain.ThreadRef, page, limit int) (*domain.MessagePage, error)
	MarkAsRead(ctx context.Context, userID, conversationID string) (time.Time, error)
	UnreadCount(ctx context.Context, userID, conversationID string) (int64, error)
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, userID string, filter domain.NotificationFilter) (*domain.NotificationPage, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type AttachmentService interface {
	// Upload stores the file and returns its URL and message type.
	Upload(ctx context.Context, ref domain.ThreadRef, file *multipart.FileHeader) (*Attachment, error)
	// Discard removes an uploaded file whose message could not be persisted.
	Discard(ctx context.Context, attachment *Attachment)
}

// Attachment is a stored upload.
type Attachment struct {
	Key  string
	URL  string
	Type domain.MessageType
}
