package model

import "time"

// TaskStatus is the stored status of a task. The status shown to users is
// derived, see package status.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskCompleted TaskStatus = "completed"
	TaskSkipped   TaskStatus = "skipped"
	TaskLate      TaskStatus = "late"
)

// TaskStatuses lists the stored statuses in display order.
var TaskStatuses = []TaskStatus{TaskOpen, TaskLate, TaskCompleted, TaskSkipped}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

const DefaultTaskName = "new task"

// Task represents a single unit of work.
type Task struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"not null" json:"name"`
	DeadlineAt      *time.Time `json:"deadline_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	SkippedAt       *time.Time `json:"skipped_at"`
	Status          TaskStatus `gorm:"not null;default:open" json:"status"`
	RecurringTaskID *uint      `gorm:"index" json:"recurring_task_id"`
	EstimatedTime   *int       `json:"estimated_time"` // minutes
	Description     string     `json:"description"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	RecurringTask *RecurringTask `gorm:"constraint:OnDelete:SET NULL" json:"recurring_task,omitempty"`
}

// Ref returns the item reference used by universe memberships.
func (t Task) Ref() ItemRef {
	return ItemRef{Kind: ItemTask, ID: t.ID}
}
