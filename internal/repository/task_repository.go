package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"universes/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts the task together with its universe memberships.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task, memberships []Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return replaceMemberships(tx, task.Ref(), memberships)
	})
}

// Save writes every column of task and replaces its memberships.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task, memberships []Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(task).Error; err != nil {
			return fmt.Errorf("save task: %w", err)
		}
		return replaceMemberships(tx, task.Ref(), memberships)
	})
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("RecurringTask").First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks, optionally restricted to one universe. Universe lists
// follow the membership order, the global list follows the deadline.
func (r *TaskRepository) List(ctx context.Context, universeID *uint) ([]model.Task, error) {
	var tasks []model.Task
	q := r.db.WithContext(ctx).Preload("RecurringTask")
	if universeID != nil {
		q = q.Select("tasks.*").Joins("JOIN universe_items ON universe_items.item_id = tasks.id AND universe_items.item_type = ?", model.ItemTask).
			Where("universe_items.universe_id = ?", *universeID).
			Order("universe_items." + orderColumn + " ASC, tasks.id ASC")
	} else {
		q = q.Order("tasks.deadline_at IS NULL, tasks.deadline_at ASC, tasks.created_at DESC")
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListOpen returns tasks that are neither completed nor skipped.
func (r *TaskRepository) ListOpen(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("completed_at IS NULL AND skipped_at IS NULL").
		Order("deadline_at IS NULL, deadline_at ASC, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.CompletedAt = &completedAt
	task.Status = model.TaskCompleted
	if err := r.db.WithContext(ctx).Model(task).Updates(map[string]any{
		"completed_at": completedAt,
		"status":       model.TaskCompleted,
	}).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// MarkSkipped sets or clears the skip timestamp.
func (r *TaskRepository) MarkSkipped(ctx context.Context, task *model.Task, skippedAt *time.Time) error {
	task.SkippedAt = skippedAt
	task.Status = model.TaskSkipped
	var value any
	if skippedAt == nil {
		task.Status = model.TaskOpen
	} else {
		value = *skippedAt
	}
	if err := r.db.WithContext(ctx).Model(task).Updates(map[string]any{
		"skipped_at": value,
		"status":     task.Status,
	}).Error; err != nil {
		return fmt.Errorf("skip task: %w", err)
	}
	return nil
}

// Delete removes a task and its memberships. Logs stay behind until pruned.
func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteMemberships(tx, model.ItemRef{Kind: model.ItemTask, ID: id}); err != nil {
			return err
		}
		res := tx.Delete(&model.Task{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
