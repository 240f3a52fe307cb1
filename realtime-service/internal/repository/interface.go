package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotParticipant       = errors.New("not a participant of this thread")
	ErrDuplicate            = errors.New("record already exists")
)

// UserRepository reads the users table.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.User, error)
}

// TaskRepository reads the tasks table.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
}

// ConversationRepository persists conversations and their participants.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	GetParticipant(ctx context.Context, conversationID, userID string) (*domain.Participant, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	UpdateLastRead(ctx context.Context, conversationID, userID string, at time.Time) error
}

// MessageRepository reads thread history.
type MessageRepository interface {
	// ListByThread returns newest-first messages and the thread total.
	ListByThread(ctx context.Context, ref domain.ThreadRef, offset, limit int) ([]*domain.Message, int64, error)
	// Latest returns the newest message, or nil when the thread is empty.
	Latest(ctx context.Context, ref domain.ThreadRef) (*domain.Message, error)
	// CountUnread counts messages not sent by userID created strictly after since.
	CountUnread(ctx context.Context, ref domain.ThreadRef, userID string, since time.Time) (int64, error)
}

// NotificationRepository persists notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]*domain.Notification, int64, error)
	MarkRead(ctx context.Context, id, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// ThreadStore is the per-kind authorization and persistence strategy.
type ThreadStore interface {
	Kind() domain.ThreadKind
	// IsParticipant is false, with no error, for unknown threads.
	IsParticipant(ctx context.Context, threadID, userID string) (bool, error)
	Participants(ctx context.Context, threadID string) ([]string, error)
	// AppendMessage re-checks participation, inserts the message and touches
	// the parent thread in one transaction. Returns ErrNotParticipant when the
	// sender lost access.
	AppendMessage(ctx context.Context, msg *domain.Message) error
}
