package cli

import (
	"bufio"
	"bytes"
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"universes/internal/client"
	"universes/internal/inline"
)

type recordingAPI struct {
	fields []url.Values
}

func (r *recordingAPI) UpdateTask(_ context.Context, _ uint, fields url.Values) (*client.Task, error) {
	r.fields = append(r.fields, fields)
	return nil, nil
}

func (r *recordingAPI) UpdateUniverse(_ context.Context, _ uint, fields url.Values) error {
	r.fields = append(r.fields, fields)
	return nil
}

func (r *recordingAPI) CompleteTask(context.Context, uint) (*client.Task, error)  { return nil, nil }
func (r *recordingAPI) SkipTask(context.Context, uint) (*client.Task, error)      { return nil, nil }
func (r *recordingAPI) UnskipTask(context.Context, uint) (*client.Task, error)    { return nil, nil }
func (r *recordingAPI) DeleteTask(context.Context, uint) error                    { return nil }
func (r *recordingAPI) DeleteUniverse(context.Context, uint) error                { return nil }
func (r *recordingAPI) LogTime(context.Context, string, uint, *int, string) error { return nil }

func mountTask(t *testing.T) (*inline.Card, *recordingAPI, *bytes.Buffer) {
	t.Helper()
	api := &recordingAPI{}
	alerts := &bytes.Buffer{}
	page, err := inline.NewPage(inline.PageOptions{
		API:      api,
		Alerter:  &writerAlerter{w: alerts},
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	card := page.MountTask(context.Background(), &client.Task{
		ID:          7,
		Name:        "Write report",
		UniverseIDs: []uint{1},
	}, inline.Lookups{
		Universes: map[uint]string{1: "Home", 2: "Work", 3: "Side"},
		Recurring: map[uint]string{4: "Weekly review"},
	})
	return card, api, alerts
}

func TestParseCardRef(t *testing.T) {
	tests := []struct {
		kind, id string
		want     inline.Kind
		wantID   uint
		ok       bool
	}{
		{"task", "12", inline.KindTask, 12, true},
		{"Universes", "#3", inline.KindUniverse, 3, true},
		{"idea", "1", "", 0, false},
		{"task", "0", "", 0, false},
		{"task", "abc", "", 0, false},
	}
	for _, tt := range tests {
		kind, id, err := parseCardRef(tt.kind, tt.id)
		if (err == nil) != tt.ok {
			t.Fatalf("parseCardRef(%q, %q) err = %v", tt.kind, tt.id, err)
		}
		if tt.ok && (kind != tt.want || id != tt.wantID) {
			t.Fatalf("parseCardRef(%q, %q) = %s %d", tt.kind, tt.id, kind, id)
		}
	}
}

func TestEditUniversesMarksPrimary(t *testing.T) {
	card, api, _ := mountTask(t)
	if err := applyEdit(context.Background(), card, "universes", "1, *3", ""); err != nil {
		t.Fatalf("applyEdit: %v", err)
	}
	if len(api.fields) != 1 {
		t.Fatalf("requests = %d", len(api.fields))
	}
	got := api.fields[0]
	if ids := strings.Join(got["universe_ids[]"], ","); ids != "1,3" {
		t.Fatalf("universe_ids[] = %s", ids)
	}
	if got.Get("primary_universe") != "1" {
		t.Fatalf("primary_universe = %q", got.Get("primary_universe"))
	}
}

func TestEditUniversesRejectsGarbage(t *testing.T) {
	card, api, _ := mountTask(t)
	if err := applyEdit(context.Background(), card, "universes", "1,x", ""); err == nil {
		t.Fatalf("bad id accepted")
	}
	if len(api.fields) != 0 {
		t.Fatalf("request sent for a bad id")
	}
}

func TestEditDeadlineAndEstimate(t *testing.T) {
	card, api, _ := mountTask(t)
	ctx := context.Background()

	// "today" follows the page clock, not the process clock
	saved := timeNow
	timeNow = func() time.Time { return time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = saved })

	if err := applyEdit(ctx, card, "deadline", "today", ""); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if got := api.fields[0].Get("deadline_at"); got != "2026-04-15T17:00:00Z" {
		t.Fatalf("deadline_at = %q", got)
	}

	if err := applyEdit(ctx, card, "estimate", "1.5", "hours"); err != nil {
		t.Fatalf("estimate: %v", err)
	}
	last := api.fields[len(api.fields)-1]
	if last.Get("estimated_time") != "1.5" || last.Get("time_unit") != "hours" {
		t.Fatalf("estimate fields = %v", last)
	}
}

func TestEditUnsupportedField(t *testing.T) {
	card, api, _ := mountTask(t)
	if err := applyEdit(context.Background(), card, "status", "active", ""); err == nil {
		t.Fatalf("status edited on a task card")
	}
	if err := applyEdit(context.Background(), card, "colour", "red", ""); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if len(api.fields) != 0 {
		t.Fatalf("requests = %d", len(api.fields))
	}
}

func TestEditNameValidationAlerts(t *testing.T) {
	card, api, alerts := mountTask(t)
	if err := applyEdit(context.Background(), card, "name", "   ", ""); err == nil {
		t.Fatalf("empty name saved")
	}
	if len(api.fields) != 0 {
		t.Fatalf("request sent for an empty name")
	}
	if !strings.Contains(alerts.String(), "Name can not be empty.") {
		t.Fatalf("alerts = %q", alerts.String())
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		out := &bytes.Buffer{}
		c := &promptConfirmer{in: bufio.NewReader(strings.NewReader(tt.in)), out: out}
		if got := c.Confirm("Delete this task?"); got != tt.want {
			t.Fatalf("Confirm(%q) = %v", tt.in, got)
		}
		if !strings.Contains(out.String(), "Delete this task? [y/N]") {
			t.Fatalf("prompt = %q", out.String())
		}
	}
}

func TestEditorField(t *testing.T) {
	for in, want := range map[string]string{
		"deadline":  "deadline_at",
		"estimate":  "estimated_time",
		"recurring": "recurring_task_id",
		"universes": "universe_ids",
		"name":      "name",
	} {
		if got := editorField(in); got != want {
			t.Fatalf("editorField(%q) = %q", in, got)
		}
	}
}
