package status

import (
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time { return &t }

func TestDerive(t *testing.T) {
	today := time.Date(2024, 3, 15, 9, 30, 0, 0, time.Local)
	yesterday := today.AddDate(0, 0, -1)
	laterToday := time.Date(2024, 3, 15, 23, 59, 0, 0, time.Local)
	earlierToday := time.Date(2024, 3, 15, 0, 1, 0, 0, time.Local)
	tomorrow := today.AddDate(0, 0, 1)

	tests := []struct {
		name string
		snap Snapshot
		want Status
	}{
		{"open without deadline", Snapshot{Status: "open"}, Open},
		{"empty status defaults to open", Snapshot{}, Open},
		{"deadline yesterday is late", Snapshot{Status: "open", DeadlineAt: ptr(yesterday)}, Late},
		{"deadline earlier today is not late", Snapshot{Status: "open", DeadlineAt: ptr(earlierToday)}, Open},
		{"deadline later today is not late", Snapshot{Status: "open", DeadlineAt: ptr(laterToday)}, Open},
		{"deadline tomorrow", Snapshot{Status: "open", DeadlineAt: ptr(tomorrow)}, Open},
		{"stored late without deadline", Snapshot{Status: "late"}, Late},
		{"stored late with future deadline", Snapshot{Status: "late", DeadlineAt: ptr(tomorrow)}, Late},
		{"skipped beats late", Snapshot{Status: "late", SkippedAt: ptr(yesterday), DeadlineAt: ptr(yesterday)}, Skipped},
		{"completed beats everything", Snapshot{Status: "open", CompletedAt: ptr(today), SkippedAt: ptr(today), DeadlineAt: ptr(yesterday)}, Completed},
		{"stored completed without timestamp", Snapshot{Status: "completed"}, Completed},
		{"unknown status falls back to open", Snapshot{Status: "archived"}, Open},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.snap, today); got != tt.want {
				t.Fatalf("Derive() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveIsTotalAndDeterministic(t *testing.T) {
	today := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	stamps := []*time.Time{nil, ptr(today)}
	deadlines := []*time.Time{nil, ptr(today.AddDate(0, 0, -1)), ptr(today), ptr(today.AddDate(0, 0, 1))}
	statuses := []string{"open", "late", "completed", "skipped"}

	allowed := map[Status]bool{Open: true, Late: true, Completed: true, Skipped: true}
	for _, completed := range stamps {
		for _, skipped := range stamps {
			for _, st := range statuses {
				for _, deadline := range deadlines {
					snap := Snapshot{CompletedAt: completed, SkippedAt: skipped, Status: st, DeadlineAt: deadline}
					got := Derive(snap, today)
					if !allowed[got] {
						t.Fatalf("Derive(%+v) = %q, outside the display set", snap, got)
					}
					if again := Derive(snap, today); again != got {
						t.Fatalf("Derive not deterministic: %q then %q", got, again)
					}
					switch {
					case completed != nil && got != Completed:
						t.Fatalf("completed task derived %q", got)
					case completed == nil && skipped != nil && got != Skipped:
						t.Fatalf("skipped task derived %q", got)
					}
				}
			}
		}
	}
}

func TestDeriveComparesInTodaysLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	today := time.Date(2024, 3, 15, 8, 0, 0, 0, loc)
	// 22:00 UTC on the 14th is 08:00 on the 15th in loc.
	deadline := time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)
	if got := Derive(Snapshot{Status: "open", DeadlineAt: &deadline}, today); got != Open {
		t.Fatalf("Derive() = %q, want open", got)
	}
}

func TestSkipVisible(t *testing.T) {
	tests := []struct {
		recurring, completed, skipped bool
		want                          bool
	}{
		{true, false, false, true},
		{false, false, false, false},
		{true, true, false, false},
		{true, false, true, false},
	}
	for _, tt := range tests {
		if got := SkipVisible(tt.recurring, tt.completed, tt.skipped); got != tt.want {
			t.Errorf("SkipVisible(%v, %v, %v) = %v, want %v", tt.recurring, tt.completed, tt.skipped, got, tt.want)
		}
	}
}
