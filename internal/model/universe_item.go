package model

import (
	"fmt"

	"gorm.io/gorm"
)

// ItemKind names the entity a universe membership points at.
type ItemKind string

const (
	ItemTask     ItemKind = "task"
	ItemIdeaPool ItemKind = "idea_pool"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == ItemTask || k == ItemIdeaPool
}

// ItemRef identifies the member of a universe.
type ItemRef struct {
	Kind ItemKind
	ID   uint
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// UniverseItem links a universe to a task or idea pool.
type UniverseItem struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	UniverseID uint     `gorm:"index;not null" json:"universe_id"`
	ItemType   ItemKind `gorm:"index:idx_universe_item_ref;not null" json:"item_type"`
	ItemID     uint     `gorm:"index:idx_universe_item_ref;not null" json:"item_id"`
	IsPrimary  *bool    `json:"is_primary"`
	Order      *int     `gorm:"column:order" json:"order"`

	Universe *Universe `gorm:"constraint:OnDelete:CASCADE" json:"universe,omitempty"`
}

// Ref returns the membership's target.
func (ui UniverseItem) Ref() ItemRef {
	return ItemRef{Kind: ui.ItemType, ID: ui.ItemID}
}

// Primary reports whether the membership is flagged primary.
func (ui UniverseItem) Primary() bool {
	return ui.IsPrimary != nil && *ui.IsPrimary
}

func (ui *UniverseItem) BeforeCreate(tx *gorm.DB) error {
	if !ui.ItemType.Valid() {
		return fmt.Errorf("universe item: unknown item type %q", ui.ItemType)
	}
	return nil
}
