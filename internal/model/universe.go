package model

import "time"

// UniverseStatus is the lifecycle stage of a universe.
type UniverseStatus string

const (
	UniverseNotStarted     UniverseStatus = "not_started"
	UniverseNextSmallSteps UniverseStatus = "next_small_steps"
	UniverseInFocus        UniverseStatus = "in_focus"
	UniverseInOrbit        UniverseStatus = "in_orbit"
	UniverseDormant        UniverseStatus = "dormant"
	UniverseDone           UniverseStatus = "done"
)

// UniverseStatuses lists the statuses in display order.
var UniverseStatuses = []UniverseStatus{
	UniverseNotStarted,
	UniverseNextSmallSteps,
	UniverseInFocus,
	UniverseInOrbit,
	UniverseDormant,
	UniverseDone,
}

// Valid reports whether s is one of the known statuses.
func (s UniverseStatus) Valid() bool {
	for _, known := range UniverseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Universe is a project or area of life. Universes form a tree through ParentID.
type Universe struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	ParentID    *uint          `gorm:"index" json:"parent_id"`
	Status      UniverseStatus `gorm:"not null;default:not_started" json:"status"`
	WeeklyOrder *int           `json:"weekly_order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
