package model

import "time"

// RecurringTask is a template for repeated task instances.
type RecurringTask struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	Name                   string    `gorm:"not null" json:"name"`
	FrequencyUnit          string    `json:"frequency_unit"` // e.g. day, week, month
	FrequencyInterval      int       `gorm:"default:1" json:"frequency_interval"`
	Active                 bool      `gorm:"default:true" json:"active"`
	EstimatedTime          *int      `json:"estimated_time"`
	Description            string    `json:"description"`
	DefaultDurationMinutes *int      `json:"default_duration_minutes"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
