// Package display formats field values the way task and universe cards show
// them. The server renders cards with it and the inline editors reuse it
// after a save.
package display

import (
	"strings"
	"time"
)

// DeadlineLayout is the human deadline format, e.g. "Jan 2, 2006, 5:00 PM".
const DeadlineLayout = "Jan 2, 2006, 3:04 PM"

// PrimaryMarker prefixes the primary universe in a universe list.
const PrimaryMarker = "★ "

// Deadline renders an optional deadline.
func Deadline(t *time.Time) string {
	if t == nil {
		return "no deadline"
	}
	return "deadline: " + t.Format(DeadlineLayout)
}

// Enum turns an internal enum value such as "next_small_steps" into words.
func Enum(v string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(v)
}

// Recurring renders the recurring task link of a task.
func Recurring(name string) string {
	if name == "" {
		return "non-recurring"
	}
	return "recurring instance of " + name
}

// Universes joins universe names, marking the one at index primary.
func Universes(names []string, primary int) string {
	out := make([]string, len(names))
	for i, n := range names {
		if i == primary {
			n = PrimaryMarker + n
		}
		out[i] = n
	}
	return strings.Join(out, ", ")
}
