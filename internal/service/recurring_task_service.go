package service

import (
	"context"
	"strings"

	"universes/internal/model"
	"universes/internal/repository"
)

var frequencyUnits = map[string]bool{"day": true, "week": true, "month": true, "year": true}

// RecurringTaskInput describes a new recurring task template.
type RecurringTaskInput struct {
	Name                   string
	FrequencyUnit          string
	FrequencyInterval      int
	EstimatedTime          *int
	Description            string
	DefaultDurationMinutes *int
}

// RecurringTaskService manages recurring task templates. Spawning
// instances is not done here.
type RecurringTaskService struct {
	repo *repository.RecurringTaskRepository
}

func NewRecurringTaskService(repo *repository.RecurringTaskRepository) *RecurringTaskService {
	return &RecurringTaskService{repo: repo}
}

func (s *RecurringTaskService) List(ctx context.Context) ([]model.RecurringTask, error) {
	return s.repo.List(ctx)
}

func (s *RecurringTaskService) Get(ctx context.Context, id uint) (*model.RecurringTask, error) {
	rt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "recurring task", id)
	}
	return rt, nil
}

func (s *RecurringTaskService) Create(ctx context.Context, in RecurringTaskInput) (*model.RecurringTask, error) {
	verr := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Add("name", "The name field is required.")
	}
	unit := strings.ToLower(strings.TrimSpace(in.FrequencyUnit))
	if unit == "" {
		unit = "week"
	}
	if !frequencyUnits[unit] {
		verr.Add("frequency_unit", "The frequency unit must be day, week, month or year.")
	}
	interval := in.FrequencyInterval
	if interval == 0 {
		interval = 1
	}
	if interval < 0 {
		verr.Add("frequency_interval", "The frequency interval must be at least 1.")
	}
	if in.EstimatedTime != nil && *in.EstimatedTime < 0 {
		verr.Add("estimated_time", "The estimated time must not be negative.")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	rt := model.RecurringTask{
		Name:                   name,
		FrequencyUnit:          unit,
		FrequencyInterval:      interval,
		Active:                 true,
		EstimatedTime:          in.EstimatedTime,
		Description:            strings.TrimSpace(in.Description),
		DefaultDurationMinutes: in.DefaultDurationMinutes,
	}
	if err := s.repo.Create(ctx, &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}
