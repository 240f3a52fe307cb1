package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// participantCheck reports membership using the given handle, which is a
// transaction when called from appendMessage.
type participantCheck func(db *gorm.DB, threadID, userID string) (bool, error)

// ConversationThreadStore authorizes against conversation_participants.
type ConversationThreadStore struct {
	db *gorm.DB
}

func NewConversationThreadStore(db *gorm.DB) *ConversationThreadStore {
	return &ConversationThreadStore{db: db}
}

func (s *ConversationThreadStore) Kind() domain.ThreadKind {
	return domain.ThreadConversation
}

func (s *ConversationThreadStore) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	return isConversationParticipant(s.db.WithContext(ctx), threadID, userID)
}

func (s *ConversationThreadStore) Participants(ctx context.Context, threadID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&domain.ConversationParticipantModel{}).
		Where("conversation_id = ?", threadID).
		Order("joined_at").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *ConversationThreadStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return appendMessage(s.db.WithContext(ctx), msg, isConversationParticipant, &domain.ConversationModel{})
}

func isConversationParticipant(db *gorm.DB, threadID, userID string) (bool, error) {
	var count int64
	err := db.Model(&domain.ConversationParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TaskThreadStore authorizes against the task's client and freelancer.
type TaskThreadStore struct {
	db *gorm.DB
}

func NewTaskThreadStore(db *gorm.DB) *TaskThreadStore {
	return &TaskThreadStore{db: db}
}

func (s *TaskThreadStore) Kind() domain.ThreadKind {
	return domain.ThreadTask
}

func (s *TaskThreadStore) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	return isTaskParticipant(s.db.WithContext(ctx), threadID, userID)
}

func (s *TaskThreadStore) Participants(ctx context.Context, threadID string) ([]string, error) {
	task, err := getTask(s.db.WithContext(ctx), threadID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return task.Participants(), nil
}

func (s *TaskThreadStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return appendMessage(s.db.WithContext(ctx), msg, isTaskParticipant, &domain.TaskModel{})
}

func isTaskParticipant(db *gorm.DB, threadID, userID string) (bool, error) {
	task, err := getTask(db, threadID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return false, nil
		}
		return false, err
	}
	return task.HasParticipant(userID), nil
}

func appendMessage(db *gorm.DB, msg *domain.Message, check participantCheck, parent interface{}) error {
	return db.Transaction(func(tx *gorm.DB) error {
		ok, err := check(tx, msg.Thread.ID, msg.SenderID)
		if err != nil {
			return fmt.Errorf("check participant: %w", err)
		}
		if !ok {
			return ErrNotParticipant
		}

		if err := tx.Create(domain.MessageToModel(msg)).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		// UpdateColumn skips the autoUpdateTime hook so the thread carries the
		// message timestamp exactly.
		err = tx.Model(parent).
			Where("id = ?", msg.Thread.ID).
			UpdateColumn("updated_at", msg.CreatedAt).Error
		if err != nil {
			return fmt.Errorf("touch thread: %w", err)
		}
		return nil
	})
}
