package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// GormTaskRepository implements TaskRepository using GORM.
type GormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return getTask(r.db.WithContext(ctx), id)
}

func getTask(db *gorm.DB, id string) (*domain.Task, error) {
	var model domain.TaskModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
