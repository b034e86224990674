// Package status derives the status shown for a task from its stored fields.
package status

import "time"

// Status is a display status.
type Status string

const (
	Open      Status = "open"
	Late      Status = "late"
	Completed Status = "completed"
	Skipped   Status = "skipped"
)

// Snapshot holds the task fields the display status depends on.
type Snapshot struct {
	CompletedAt *time.Time
	SkippedAt   *time.Time
	Status      string
	DeadlineAt  *time.Time
}

// Derive maps a snapshot to its display status. Completion wins over
// skipping, skipping over lateness. Deadlines are compared by calendar date
// in today's location, so a deadline falling today is never late.
func Derive(s Snapshot, today time.Time) Status {
	if s.CompletedAt != nil {
		return Completed
	}
	if s.SkippedAt != nil {
		return Skipped
	}
	if Status(s.Status) == Late {
		return Late
	}
	if s.DeadlineAt != nil && dateBefore(*s.DeadlineAt, today) {
		return Late
	}
	switch Status(s.Status) {
	case Open, "":
		return Open
	case Completed, Skipped:
		// stored terminal status without its timestamp
		return Status(s.Status)
	}
	return Open
}

// SkipVisible reports whether the skip action is offered for a task.
func SkipVisible(recurring, completed, skipped bool) bool {
	return recurring && !completed && !skipped
}

func dateBefore(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
