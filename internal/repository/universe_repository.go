package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"universes/internal/model"
)

// UniverseRepository handles CRUD for universes.
type UniverseRepository struct {
	db *gorm.DB
}

func NewUniverseRepository(db *gorm.DB) *UniverseRepository {
	return &UniverseRepository{db: db}
}

func (r *UniverseRepository) Create(ctx context.Context, universe *model.Universe) error {
	if err := r.db.WithContext(ctx).Create(universe).Error; err != nil {
		return fmt.Errorf("create universe: %w", err)
	}
	return nil
}

func (r *UniverseRepository) Save(ctx context.Context, universe *model.Universe) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(universe).Error; err != nil {
		return fmt.Errorf("save universe: %w", err)
	}
	return nil
}

func (r *UniverseRepository) FindByID(ctx context.Context, id uint) (*model.Universe, error) {
	var universe model.Universe
	if err := r.db.WithContext(ctx).First(&universe, id).Error; err != nil {
		return nil, err
	}
	return &universe, nil
}

// List returns universes in weekly order, unordered ones last by name.
func (r *UniverseRepository) List(ctx context.Context) ([]model.Universe, error) {
	var universes []model.Universe
	if err := r.db.WithContext(ctx).
		Order("weekly_order IS NULL, weekly_order ASC, name ASC").
		Find(&universes).Error; err != nil {
		return nil, fmt.Errorf("list universes: %w", err)
	}
	return universes, nil
}

// ExistingIDs returns the subset of ids that name stored universes.
func (r *UniverseRepository) ExistingIDs(ctx context.Context, ids []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uint
	if err := r.db.WithContext(ctx).Model(&model.Universe{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("check universes: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// Names maps universe ids to names.
func (r *UniverseRepository) Names(ctx context.Context) (map[uint]string, error) {
	universes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]string, len(universes))
	for _, u := range universes {
		out[u.ID] = u.Name
	}
	return out, nil
}

// Delete removes a universe. Children are detached and memberships dropped.
func (r *UniverseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Universe{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return fmt.Errorf("detach children: %w", err)
		}
		if err := tx.Where("universe_id = ?", id).Delete(&model.UniverseItem{}).Error; err != nil {
			return fmt.Errorf("delete universe items: %w", err)
		}
		res := tx.Delete(&model.Universe{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete universe: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// UpdateWeeklyOrder sets weekly_order for each universe id in the map.
func (r *UniverseRepository) UpdateWeeklyOrder(ctx context.Context, orders map[uint]*int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, order := range orders {
			var value any
			if order != nil {
				value = *order
			}
			res := tx.Model(&model.Universe{}).Where("id = ?", id).Update("weekly_order", value)
			if res.Error != nil {
				return fmt.Errorf("update weekly order: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("universe %d: %w", id, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
}
