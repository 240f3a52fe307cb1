package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/pkg/database"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// GormNotificationRepository implements NotificationRepository using GORM.
type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

func (r *GormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	model := domain.NotificationToModel(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	n.CreatedAt = model.CreatedAt
	return nil
}

func (r *GormNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model domain.NotificationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns newest-first notifications for the user and the filtered total.
func (r *GormNotificationRepository) List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]*domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.NotificationModel{}).Where("user_id = ?", userID)
	if filter.IsRead != nil {
		query = query.Where("is_read = ?", *filter.IsRead)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []domain.NotificationModel
	offset := (filter.Page - 1) * filter.Limit
	err := query.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]*domain.Notification, len(models))
	for i := range models {
		items[i] = models[i].ToDomain()
	}
	return items, total, nil
}

// MarkRead flips is_read for one unread notification of the user. Zero rows
// affected means it was already read or is not theirs.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, id, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.NotificationModel{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
