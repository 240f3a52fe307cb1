package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/pkg/database"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// GormConversationRepository implements ConversationRepository using GORM.
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// Create inserts the conversation and one participant row per member.
func (r *GormConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	model := &domain.ConversationModel{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(model).Error; err != nil {
			return err
		}
		rows := make([]domain.ConversationParticipantModel, len(conv.Participants))
		for i, p := range conv.Participants {
			rows[i] = domain.ConversationParticipantModel{
				ConversationID: conv.ID,
				UserID:         p.UserID,
				LastReadAt:     p.LastReadAt,
				JoinedAt:       p.JoinedAt,
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	conv.CreatedAt = model.CreatedAt
	conv.UpdatedAt = model.UpdatedAt
	for i := range conv.Participants {
		conv.Participants[i].ConversationID = conv.ID
	}
	return nil
}

func (r *GormConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var model domain.ConversationModel
	err := r.db.WithContext(ctx).Preload("Participants").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormConversationRepository) GetParticipant(ctx context.Context, conversationID, userID string) (*domain.Participant, error) {
	var model domain.ConversationParticipantModel
	err := r.db.WithContext(ctx).
		First(&model, "conversation_id = ? AND user_id = ?", conversationID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *GormConversationRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	var models []domain.ConversationModel
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Preload("Participants").
		Order("conversations.updated_at DESC").
		Order("conversations.id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	convs := make([]*domain.Conversation, len(models))
	for i := range models {
		convs[i] = models[i].ToDomain()
	}
	return convs, nil
}

// UpdateLastRead sets the participant's read marker to at.
func (r *GormConversationRepository) UpdateLastRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.ConversationParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotParticipant
	}
	return nil
}
