package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"universes/internal/model"
)

// orderColumn is quoted because ORDER is a keyword in every dialect we use.
const orderColumn = `"order"`

// Membership is the desired state of one universe membership.
type Membership struct {
	UniverseID uint
	Primary    bool
}

// OrderUpdate moves one universe item to a new position.
type OrderUpdate struct {
	UniverseItemID uint `json:"universe_item_id"`
	Order          int  `json:"order"`
}

// MembershipRepository reads universe memberships of tasks and idea pools.
type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// ListForItems returns memberships grouped by item id for one item kind.
func (r *MembershipRepository) ListForItems(ctx context.Context, kind model.ItemKind, ids []uint) (map[uint][]model.UniverseItem, error) {
	out := make(map[uint][]model.UniverseItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.UniverseItem
	if err := r.db.WithContext(ctx).
		Where("item_type = ? AND item_id IN ?", kind, ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	for _, row := range rows {
		out[row.ItemID] = append(out[row.ItemID], row)
	}
	return out, nil
}

// ListForItem returns the memberships of a single item.
func (r *MembershipRepository) ListForItem(ctx context.Context, ref model.ItemRef) ([]model.UniverseItem, error) {
	grouped, err := r.ListForItems(ctx, ref.Kind, []uint{ref.ID})
	if err != nil {
		return nil, err
	}
	return grouped[ref.ID], nil
}

// UpdateOrders applies a batch of positions within one universe. Every
// update must name an item of that universe.
func (r *MembershipRepository) UpdateOrders(ctx context.Context, universeID uint, updates []OrderUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&model.UniverseItem{}).
				Where("id = ? AND universe_id = ?", u.UniverseItemID, universeID).
				Update("order", u.Order)
			if res.Error != nil {
				return fmt.Errorf("update order: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("universe item %d in universe %d: %w", u.UniverseItemID, universeID, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
}

// replaceMemberships makes the memberships of ref match want. Rows that stay
// keep their position; new rows are appended to the end of their universe.
func replaceMemberships(tx *gorm.DB, ref model.ItemRef, want []Membership) error {
	var existing []model.UniverseItem
	if err := tx.Where("item_type = ? AND item_id = ?", ref.Kind, ref.ID).Find(&existing).Error; err != nil {
		return fmt.Errorf("load memberships: %w", err)
	}

	wanted := make(map[uint]bool, len(want))
	for _, m := range want {
		wanted[m.UniverseID] = m.Primary
	}

	kept := make(map[uint]bool, len(existing))
	for _, row := range existing {
		primary, ok := wanted[row.UniverseID]
		if !ok || kept[row.UniverseID] {
			if err := tx.Delete(&model.UniverseItem{}, row.ID).Error; err != nil {
				return fmt.Errorf("delete membership: %w", err)
			}
			continue
		}
		kept[row.UniverseID] = true
		if row.Primary() != primary {
			if err := tx.Model(&model.UniverseItem{}).Where("id = ?", row.ID).Update("is_primary", primary).Error; err != nil {
				return fmt.Errorf("update membership: %w", err)
			}
		}
	}

	for _, m := range want {
		if kept[m.UniverseID] {
			continue
		}
		var last int
		if err := tx.Model(&model.UniverseItem{}).
			Where("universe_id = ?", m.UniverseID).
			Select("COALESCE(MAX(" + orderColumn + "), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		primary := m.Primary
		next := last + 1
		row := model.UniverseItem{
			UniverseID: m.UniverseID,
			ItemType:   ref.Kind,
			ItemID:     ref.ID,
			IsPrimary:  &primary,
			Order:      &next,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		kept[m.UniverseID] = true
	}
	return nil
}

func deleteMemberships(tx *gorm.DB, ref model.ItemRef) error {
	if err := tx.Where("item_type = ? AND item_id = ?", ref.Kind, ref.ID).Delete(&model.UniverseItem{}).Error; err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	return nil
}
