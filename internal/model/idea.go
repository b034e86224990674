package model

import "time"

// Idea is a loose thought that lives in one or more idea pools.
type Idea struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IdeaPool collects ideas. Pools can be members of universes.
type IdeaPool struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdeaPoolIdea is the join row between ideas and pools. Exactly one row per
// idea should carry PrimaryPool.
type IdeaPoolIdea struct {
	IdeaID      uint `gorm:"primaryKey" json:"idea_id"`
	IdeaPoolID  uint `gorm:"primaryKey" json:"idea_pool_id"`
	PrimaryPool bool `gorm:"default:false" json:"primary_pool"`

	Idea     *Idea     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	IdeaPool *IdeaPool `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
