package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"universes/internal/model"
)

// LogRepository stores time logs.
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Create(ctx context.Context, entry *model.Log) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	return nil
}

// ListFor returns the logs of one target, newest first.
func (r *LogRepository) ListFor(ctx context.Context, target model.LogTarget) ([]model.Log, error) {
	q := r.db.WithContext(ctx)
	if target.Standalone() {
		q = q.Where("loggable_type IS NULL")
	} else {
		q = q.Where("loggable_type = ? AND loggable_id = ?", target.Kind(), target.ID())
	}
	var out []model.Log
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return out, nil
}

// PruneOrphans deletes logs whose target row no longer exists. Standalone
// logs are kept.
func (r *LogRepository) PruneOrphans(ctx context.Context) (int64, error) {
	targets := []struct {
		kind  model.LogKind
		table any
	}{
		{model.LogTask, &model.Task{}},
		{model.LogIdea, &model.Idea{}},
		{model.LogUniverse, &model.Universe{}},
	}

	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range targets {
			res := tx.Where("loggable_type = ? AND loggable_id NOT IN (?)", t.kind, tx.Session(&gorm.Session{NewDB: true}).Model(t.table).Select("id")).
				Delete(&model.Log{})
			if res.Error != nil {
				return fmt.Errorf("prune %s logs: %w", t.kind, res.Error)
			}
			total += res.RowsAffected
		}
		return nil
	})
	return total, err
}
