package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"universes/internal/model"
	"universes/internal/repository"
	"universes/internal/status"
	"universes/internal/timeunit"
)

// TaskCreate is the form posted when a new task card is added.
type TaskCreate struct {
	Name            string
	UniverseIDs     []uint
	PrimaryUniverse int
	Status          string
}

// Estimate is an estimated time as typed, converted to minutes on save.
// An empty numeral clears the estimate.
type Estimate struct {
	Numeral string
	Unit    string
}

// TaskUpdate is a full task representation. Name, description and the
// universes are always sent; the remaining fields only when changed.
type TaskUpdate struct {
	Name            string
	Description     string
	UniverseIDs     []uint
	PrimaryUniverse int

	Status          *string
	DeadlineAt      Field[time.Time]
	EstimatedTime   *Estimate
	RecurringTaskID Field[uint]
}

// TaskDetail is a task together with its universe memberships.
type TaskDetail struct {
	Task        model.Task
	Memberships []model.UniverseItem
}

// UniverseIDs lists the task's universes in membership order, primary first.
func (d TaskDetail) UniverseIDs() ([]uint, int) {
	ids := make([]uint, 0, len(d.Memberships))
	primary := 0
	for i, m := range d.Memberships {
		ids = append(ids, m.UniverseID)
		if m.Primary() {
			primary = i
		}
	}
	return ids, primary
}

// DisplayStatus derives the status shown for t on the day of now.
func DisplayStatus(t model.Task, now time.Time) status.Status {
	return status.Derive(status.Snapshot{
		CompletedAt: t.CompletedAt,
		SkippedAt:   t.SkippedAt,
		Status:      string(t.Status),
		DeadlineAt:  t.DeadlineAt,
	}, now)
}

// TaskService wraps task-related business logic.
type TaskService struct {
	tasks     *repository.TaskRepository
	universes *repository.UniverseRepository
	recurring *repository.RecurringTaskRepository
	members   *repository.MembershipRepository
	logs      *LogService
}

func NewTaskService(
	tasks *repository.TaskRepository,
	universes *repository.UniverseRepository,
	recurring *repository.RecurringTaskRepository,
	members *repository.MembershipRepository,
	logs *LogService,
) *TaskService {
	return &TaskService{tasks: tasks, universes: universes, recurring: recurring, members: members, logs: logs}
}

// Create adds a task with defaults for anything left empty.
func (s *TaskService) Create(ctx context.Context, in TaskCreate) (*TaskDetail, error) {
	task := model.Task{
		Name:   strings.TrimSpace(in.Name),
		Status: model.TaskOpen,
	}
	if task.Name == "" {
		task.Name = model.DefaultTaskName
	}

	verr := &ValidationError{}
	if in.Status != "" {
		st := model.TaskStatus(in.Status)
		if !st.Valid() {
			verr.Add("status", "The selected status is invalid.")
		}
		task.Status = st
	}
	var memberships []repository.Membership
	if len(in.UniverseIDs) > 0 {
		var err error
		memberships, err = s.memberships(ctx, in.UniverseIDs, in.PrimaryUniverse, verr)
		if err != nil {
			return nil, err
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, &task, memberships); err != nil {
		return nil, err
	}
	return s.Get(ctx, task.ID)
}

// Update replaces the task with the submitted representation.
func (s *TaskService) Update(ctx context.Context, id uint, in TaskUpdate) (*TaskDetail, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}

	verr := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Add("name", "The name field is required.")
	}
	if len(in.UniverseIDs) == 0 {
		verr.Add("universe_ids", "Select at least one universe.")
	}
	memberships, err := s.memberships(ctx, in.UniverseIDs, in.PrimaryUniverse, verr)
	if err != nil {
		return nil, err
	}

	task.Name = name
	task.Description = strings.TrimSpace(in.Description)
	if in.Status != nil {
		st := model.TaskStatus(*in.Status)
		if !st.Valid() {
			verr.Add("status", "The selected status is invalid.")
		}
		task.Status = st
	}
	if in.DeadlineAt.Present {
		task.DeadlineAt = in.DeadlineAt.Value
	}
	if in.EstimatedTime != nil {
		minutes, err := estimateMinutes(*in.EstimatedTime)
		if err != nil {
			verr.Add("estimated_time", err.Error())
		}
		task.EstimatedTime = minutes
	}
	if in.RecurringTaskID.Present {
		task.RecurringTaskID = in.RecurringTaskID.Value
		task.RecurringTask = nil
		if rid := in.RecurringTaskID.Value; rid != nil {
			if _, err := s.recurring.FindByID(ctx, *rid); err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, err
				}
				verr.Add("recurring_task_id", "The selected recurring task is invalid.")
			}
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if err := s.tasks.Save(ctx, task, memberships); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func estimateMinutes(e Estimate) (*int, error) {
	if strings.TrimSpace(e.Numeral) == "" {
		return nil, nil
	}
	unit, err := timeunit.ParseUnit(e.Unit)
	if err != nil {
		return nil, err
	}
	minutes, err := timeunit.ToMinutes(e.Numeral, unit)
	if err != nil {
		return nil, err
	}
	return &minutes, nil
}

// memberships validates a universe selection. primary indexes universeIDs.
func (s *TaskService) memberships(ctx context.Context, universeIDs []uint, primary int, verr *ValidationError) ([]repository.Membership, error) {
	if len(universeIDs) == 0 {
		return nil, nil
	}
	existing, err := s.universes.ExistingIDs(ctx, universeIDs)
	if err != nil {
		return nil, err
	}
	if primary < 0 || primary >= len(universeIDs) {
		verr.Add("primary_universe", "Select exactly one primary universe.")
	}
	seen := make(map[uint]bool, len(universeIDs))
	out := make([]repository.Membership, 0, len(universeIDs))
	for i, id := range universeIDs {
		if !existing[id] {
			verr.Add("universe_ids", fmt.Sprintf("Universe %d does not exist.", id))
			continue
		}
		if seen[id] {
			verr.Add("universe_ids", "Each universe can only be selected once.")
			continue
		}
		seen[id] = true
		out = append(out, repository.Membership{UniverseID: id, Primary: i == primary})
	}
	return out, nil
}

func (s *TaskService) Get(ctx context.Context, id uint) (*TaskDetail, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	memberships, err := s.members.ListForItem(ctx, task.Ref())
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: *task, Memberships: memberships}, nil
}

// List returns all tasks, or the tasks of one universe in board order.
func (s *TaskService) List(ctx context.Context, universeID *uint) ([]TaskDetail, error) {
	if universeID != nil {
		if _, err := s.universes.FindByID(ctx, *universeID); err != nil {
			return nil, notFound(err, "universe", *universeID)
		}
	}
	tasks, err := s.tasks.List(ctx, universeID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	grouped, err := s.members.ListForItems(ctx, model.ItemTask, ids)
	if err != nil {
		return nil, err
	}
	out := make([]TaskDetail, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskDetail{Task: t, Memberships: grouped[t.ID]})
	}
	return out, nil
}

// ListOpen returns tasks that are neither completed nor skipped.
func (s *TaskService) ListOpen(ctx context.Context) ([]model.Task, error) {
	return s.tasks.ListOpen(ctx)
}

// Complete marks a task as done. Completion is one-way; completing a
// completed task keeps the first timestamp.
func (s *TaskService) Complete(ctx context.Context, id uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	if task.CompletedAt != nil {
		return task, nil
	}
	if err := s.tasks.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// Skip marks the current instance of a task as skipped.
func (s *TaskService) Skip(ctx context.Context, id uint, skippedAt time.Time) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	if task.CompletedAt != nil {
		return nil, invalid("skipped_at", "A completed task cannot be skipped.")
	}
	if err := s.tasks.MarkSkipped(ctx, task, &skippedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// Unskip clears the skip mark.
func (s *TaskService) Unskip(ctx context.Context, id uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	if task.SkippedAt == nil {
		return task, nil
	}
	if err := s.tasks.MarkSkipped(ctx, task, nil); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task completely. Its logs stay until the prune job runs.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return notFound(err, "task", id)
	}
	return nil
}

// Log records time spent on a task.
func (s *TaskService) Log(ctx context.Context, id uint, in LogInput) (*model.Log, error) {
	if _, err := s.tasks.FindByID(ctx, id); err != nil {
		return nil, notFound(err, "task", id)
	}
	return s.logs.Record(ctx, model.LogOnTask(id), in)
}

// UpdateOrder reorders tasks within one universe.
func (s *TaskService) UpdateOrder(ctx context.Context, universeID uint, updates []repository.OrderUpdate) error {
	if _, err := s.universes.FindByID(ctx, universeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("universe_id", "The selected universe is invalid.")
		}
		return err
	}
	if len(updates) == 0 {
		return invalid("updates", "The updates field is required.")
	}
	if err := s.members.UpdateOrders(ctx, universeID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("updates", "Every item must belong to the universe.")
		}
		return err
	}
	return nil
}
