package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"universes/internal/model"
)

func createUniverses(t *testing.T, repo *UniverseRepository, names ...string) []model.Universe {
	t.Helper()
	out := make([]model.Universe, 0, len(names))
	for _, name := range names {
		u := model.Universe{Name: name, Status: model.UniverseInFocus}
		if err := repo.Create(context.Background(), &u); err != nil {
			t.Fatalf("create universe: %v", err)
		}
		out = append(out, u)
	}
	return out
}

func TestTaskMembershipsReplaceKeepsOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	universes := NewUniverseRepository(db)
	tasks := NewTaskRepository(db)
	members := NewMembershipRepository(db)

	us := createUniverses(t, universes, "Home", "Work", "Health")

	first := model.Task{Name: "first", Status: model.TaskOpen}
	if err := tasks.Create(ctx, &first, []Membership{{UniverseID: us[0].ID, Primary: true}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := model.Task{Name: "second", Status: model.TaskOpen}
	if err := tasks.Create(ctx, &second, []Membership{{UniverseID: us[0].ID, Primary: true}, {UniverseID: us[1].ID}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows, err := members.ListForItem(ctx, second.Ref())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d memberships, want 2", len(rows))
	}
	var homeOrder int
	for _, row := range rows {
		if row.UniverseID == us[0].ID {
			homeOrder = *row.Order
			if !row.Primary() {
				t.Fatal("home membership should be primary")
			}
		}
	}
	if homeOrder != 2 {
		t.Fatalf("second task should be appended at position 2, got %d", homeOrder)
	}

	// switch primary to Work, drop Home, add Health
	if err := tasks.Save(ctx, &second, []Membership{{UniverseID: us[1].ID, Primary: true}, {UniverseID: us[2].ID}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows, err = members.ListForItem(ctx, second.Ref())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	primaries := 0
	for _, row := range rows {
		if row.UniverseID == us[0].ID {
			t.Fatal("home membership should be gone")
		}
		if row.Primary() {
			primaries++
			if row.UniverseID != us[1].ID {
				t.Fatalf("primary is universe %d, want %d", row.UniverseID, us[1].ID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("got %d primaries, want 1", primaries)
	}

	listed, err := tasks.List(ctx, &us[1].ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != second.ID {
		t.Fatalf("unexpected universe list: %+v", listed)
	}
}

func TestUpdateOrdersRejectsForeignItem(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	us := createUniverses(t, NewUniverseRepository(db), "A", "B")
	tasks := NewTaskRepository(db)
	members := NewMembershipRepository(db)

	task := model.Task{Name: "t", Status: model.TaskOpen}
	if err := tasks.Create(ctx, &task, []Membership{{UniverseID: us[0].ID, Primary: true}}); err != nil {
		t.Fatal(err)
	}
	rows, _ := members.ListForItem(ctx, task.Ref())

	if err := members.UpdateOrders(ctx, us[1].ID, []OrderUpdate{{UniverseItemID: rows[0].ID, Order: 9}}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want record not found", err)
	}
	if err := members.UpdateOrders(ctx, us[0].ID, []OrderUpdate{{UniverseItemID: rows[0].ID, Order: 9}}); err != nil {
		t.Fatalf("update orders: %v", err)
	}
	rows, _ = members.ListForItem(ctx, task.Ref())
	if *rows[0].Order != 9 {
		t.Fatalf("order = %d, want 9", *rows[0].Order)
	}
}

func TestUniverseDeleteDetachesChildren(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	universes := NewUniverseRepository(db)
	tasks := NewTaskRepository(db)

	parent := createUniverses(t, universes, "Parent")[0]
	child := model.Universe{Name: "Child", ParentID: &parent.ID, Status: model.UniverseDormant}
	if err := universes.Create(ctx, &child); err != nil {
		t.Fatal(err)
	}
	task := model.Task{Name: "t", Status: model.TaskOpen}
	if err := tasks.Create(ctx, &task, []Membership{{UniverseID: parent.ID, Primary: true}}); err != nil {
		t.Fatal(err)
	}

	if err := universes.Delete(ctx, parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := universes.FindByID(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentID != nil {
		t.Fatalf("child parent_id = %v, want nil", *got.ParentID)
	}
	rows, _ := NewMembershipRepository(db).ListForItem(ctx, task.Ref())
	if len(rows) != 0 {
		t.Fatalf("memberships survived universe delete: %+v", rows)
	}
	if err := universes.Delete(ctx, parent.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestPruneOrphansKeepsStandaloneLogs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	logs := NewLogRepository(db)

	kept := model.Task{Name: "kept", Status: model.TaskOpen}
	gone := model.Task{Name: "gone", Status: model.TaskOpen}
	for _, task := range []*model.Task{&kept, &gone} {
		if err := tasks.Create(ctx, task, nil); err != nil {
			t.Fatal(err)
		}
	}
	minutes := 30
	for _, target := range []model.LogTarget{model.LogOnTask(kept.ID), model.LogOnTask(gone.ID), model.Standalone(), model.LogOnUniverse(999)} {
		entry := model.NewLog(target, &minutes, nil)
		if err := logs.Create(ctx, &entry); err != nil {
			t.Fatal(err)
		}
	}
	if err := tasks.Delete(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	pruned, err := logs.PruneOrphans(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("pruned %d, want 2", pruned)
	}
	standalone, _ := logs.ListFor(ctx, model.Standalone())
	if len(standalone) != 1 {
		t.Fatalf("standalone logs = %d, want 1", len(standalone))
	}
	onKept, _ := logs.ListFor(ctx, model.LogOnTask(kept.ID))
	if len(onKept) != 1 {
		t.Fatalf("kept task logs = %d, want 1", len(onKept))
	}
}

func TestSkipAndComplete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := NewTaskRepository(db)

	task := model.Task{Name: "t", Status: model.TaskOpen}
	if err := tasks.Create(ctx, &task, nil); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := tasks.MarkSkipped(ctx, &task, &now); err != nil {
		t.Fatal(err)
	}
	if err := tasks.MarkSkipped(ctx, &task, nil); err != nil {
		t.Fatal(err)
	}
	got, _ := tasks.FindByID(ctx, task.ID)
	if got.SkippedAt != nil || got.Status != model.TaskOpen {
		t.Fatalf("unskip left %+v", got)
	}
	if err := tasks.MarkCompleted(ctx, &task, now); err != nil {
		t.Fatal(err)
	}
	open, _ := tasks.ListOpen(ctx)
	if len(open) != 0 {
		t.Fatalf("completed task still open: %+v", open)
	}
}
