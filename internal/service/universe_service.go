package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"universes/internal/model"
	"universes/internal/repository"
)

// UniverseInput is a full universe representation.
type UniverseInput struct {
	Name        string
	ParentID    *uint
	Status      string
	WeeklyOrder Field[int]
}

// UniverseService wraps universe-related business logic.
type UniverseService struct {
	universes *repository.UniverseRepository
	logs      *LogService
}

func NewUniverseService(universes *repository.UniverseRepository, logs *LogService) *UniverseService {
	return &UniverseService{universes: universes, logs: logs}
}

func (s *UniverseService) Create(ctx context.Context, in UniverseInput) (*model.Universe, error) {
	universe := model.Universe{Status: model.UniverseNotStarted}
	if err := s.apply(ctx, &universe, in); err != nil {
		return nil, err
	}
	if err := s.universes.Create(ctx, &universe); err != nil {
		return nil, err
	}
	return &universe, nil
}

func (s *UniverseService) Update(ctx context.Context, id uint, in UniverseInput) (*model.Universe, error) {
	universe, err := s.universes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "universe", id)
	}
	if err := s.apply(ctx, universe, in); err != nil {
		return nil, err
	}
	if err := s.universes.Save(ctx, universe); err != nil {
		return nil, err
	}
	return universe, nil
}

// apply validates in and copies it onto u. A universe can not be its own
// parent, directly or through its descendants.
func (s *UniverseService) apply(ctx context.Context, u *model.Universe, in UniverseInput) error {
	verr := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Add("name", "The name field is required.")
	}
	if in.Status != "" {
		st := model.UniverseStatus(in.Status)
		if !st.Valid() {
			verr.Add("status", "The selected status is invalid.")
		}
		u.Status = st
	}
	if in.ParentID != nil {
		ok, err := s.validParent(ctx, u.ID, *in.ParentID)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add("parent_id", "The selected parent is invalid.")
		}
	}
	if in.WeeklyOrder.Present && in.WeeklyOrder.Value != nil && *in.WeeklyOrder.Value < 0 {
		verr.Add("weekly_order", "The weekly order must not be negative.")
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	u.Name = name
	u.ParentID = in.ParentID
	if in.WeeklyOrder.Present {
		u.WeeklyOrder = in.WeeklyOrder.Value
	}
	return nil
}

func (s *UniverseService) validParent(ctx context.Context, self, parentID uint) (bool, error) {
	if self != 0 && parentID == self {
		return false, nil
	}
	all, err := s.universes.List(ctx)
	if err != nil {
		return false, err
	}
	parents := make(map[uint]*uint, len(all))
	for _, u := range all {
		parents[u.ID] = u.ParentID
	}
	if _, ok := parents[parentID]; !ok {
		return false, nil
	}
	if self == 0 {
		return true, nil
	}
	// walk up from the new parent; meeting self means a cycle
	seen := map[uint]bool{}
	for cur := &parentID; cur != nil; cur = parents[*cur] {
		if *cur == self {
			return false, nil
		}
		if seen[*cur] {
			break
		}
		seen[*cur] = true
	}
	return true, nil
}

func (s *UniverseService) Get(ctx context.Context, id uint) (*model.Universe, error) {
	universe, err := s.universes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "universe", id)
	}
	return universe, nil
}

func (s *UniverseService) List(ctx context.Context) ([]model.Universe, error) {
	return s.universes.List(ctx)
}

// Delete removes a universe; children lose their parent.
func (s *UniverseService) Delete(ctx context.Context, id uint) error {
	if err := s.universes.Delete(ctx, id); err != nil {
		return notFound(err, "universe", id)
	}
	return nil
}

// Log records time spent on a universe.
func (s *UniverseService) Log(ctx context.Context, id uint, in LogInput) (*model.Log, error) {
	if _, err := s.universes.FindByID(ctx, id); err != nil {
		return nil, notFound(err, "universe", id)
	}
	return s.logs.Record(ctx, model.LogOnUniverse(id), in)
}

// UpdateWeeklyOrder sets the weekly order of several universes at once.
// A nil order removes the universe from the weekly list.
func (s *UniverseService) UpdateWeeklyOrder(ctx context.Context, orders map[uint]*int) error {
	if len(orders) == 0 {
		return invalid("orders", "The orders field is required.")
	}
	for _, order := range orders {
		if order != nil && *order < 0 {
			return invalid("orders", "The weekly order must not be negative.")
		}
	}
	if err := s.universes.UpdateWeeklyOrder(ctx, orders); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("orders", "Every universe must exist.")
		}
		return err
	}
	return nil
}
