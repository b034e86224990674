package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"universes/internal/model"
)

// PoolAssignment is the desired membership of an idea in one pool.
type PoolAssignment struct {
	PoolID  uint
	Primary bool
}

// IdeaRepository handles ideas and their idea pools.
type IdeaRepository struct {
	db *gorm.DB
}

func NewIdeaRepository(db *gorm.DB) *IdeaRepository {
	return &IdeaRepository{db: db}
}

func (r *IdeaRepository) CreateIdea(ctx context.Context, idea *model.Idea) error {
	if err := r.db.WithContext(ctx).Create(idea).Error; err != nil {
		return fmt.Errorf("create idea: %w", err)
	}
	return nil
}

func (r *IdeaRepository) CreatePool(ctx context.Context, pool *model.IdeaPool) error {
	if err := r.db.WithContext(ctx).Create(pool).Error; err != nil {
		return fmt.Errorf("create idea pool: %w", err)
	}
	return nil
}

func (r *IdeaRepository) FindIdea(ctx context.Context, id uint) (*model.Idea, error) {
	var idea model.Idea
	if err := r.db.WithContext(ctx).First(&idea, id).Error; err != nil {
		return nil, err
	}
	return &idea, nil
}

// ExistingPoolIDs returns the subset of ids that name stored pools.
func (r *IdeaRepository) ExistingPoolIDs(ctx context.Context, ids []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uint
	if err := r.db.WithContext(ctx).Model(&model.IdeaPool{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("check idea pools: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// Pools returns the join rows of an idea.
func (r *IdeaRepository) Pools(ctx context.Context, ideaID uint) ([]model.IdeaPoolIdea, error) {
	var rows []model.IdeaPoolIdea
	if err := r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Order("idea_pool_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list idea pools: %w", err)
	}
	return rows, nil
}

// ReplacePools rewrites the pool memberships of an idea.
func (r *IdeaRepository) ReplacePools(ctx context.Context, ideaID uint, pools []PoolAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("idea_id = ?", ideaID).Delete(&model.IdeaPoolIdea{}).Error; err != nil {
			return fmt.Errorf("clear idea pools: %w", err)
		}
		for _, p := range pools {
			row := model.IdeaPoolIdea{IdeaID: ideaID, IdeaPoolID: p.PoolID, PrimaryPool: p.Primary}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("add idea to pool: %w", err)
			}
		}
		return nil
	})
}
