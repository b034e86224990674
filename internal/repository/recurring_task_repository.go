package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"universes/internal/model"
)

// RecurringTaskRepository handles recurring task templates.
type RecurringTaskRepository struct {
	db *gorm.DB
}

func NewRecurringTaskRepository(db *gorm.DB) *RecurringTaskRepository {
	return &RecurringTaskRepository{db: db}
}

func (r *RecurringTaskRepository) Create(ctx context.Context, rt *model.RecurringTask) error {
	if err := r.db.WithContext(ctx).Create(rt).Error; err != nil {
		return fmt.Errorf("create recurring task: %w", err)
	}
	return nil
}

func (r *RecurringTaskRepository) FindByID(ctx context.Context, id uint) (*model.RecurringTask, error) {
	var rt model.RecurringTask
	if err := r.db.WithContext(ctx).First(&rt, id).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *RecurringTaskRepository) List(ctx context.Context) ([]model.RecurringTask, error) {
	var out []model.RecurringTask
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list recurring tasks: %w", err)
	}
	return out, nil
}
