package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) thread(ctx context.Context, ref domain.ThreadRef) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("thread_kind = ? AND thread_id = ?", string(ref.Kind), ref.ID)
}

func (r *GormMessageRepository) ListByThread(ctx context.Context, ref domain.ThreadRef, offset, limit int) ([]*domain.Message, int64, error) {
	var total int64
	if err := r.thread(ctx, ref).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []domain.MessageModel
	err := r.thread(ctx, ref).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	return messages, total, nil
}

func (r *GormMessageRepository) Latest(ctx context.Context, ref domain.ThreadRef) (*domain.Message, error) {
	var model domain.MessageModel
	err := r.thread(ctx, ref).
		Order("created_at DESC").
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormMessageRepository) CountUnread(ctx context.Context, ref domain.ThreadRef, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.thread(ctx, ref).
		Where("sender_id <> ? AND created_at > ?", userID, since.UTC()).
		Count(&count).Error
	return count, err
}
