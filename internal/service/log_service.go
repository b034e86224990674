package service

import (
	"context"
	"strings"

	"universes/internal/model"
	"universes/internal/repository"
)

// LogInput is one time log submission.
type LogInput struct {
	Minutes *int
	Notes   string
}

// LogService records time logs against tasks, ideas, universes or nothing.
type LogService struct {
	logs *repository.LogRepository
}

func NewLogService(logs *repository.LogRepository) *LogService {
	return &LogService{logs: logs}
}

// Record validates and stores a log. The caller checks that the target
// exists; standalone logs need no target.
func (s *LogService) Record(ctx context.Context, target model.LogTarget, in LogInput) (*model.Log, error) {
	verr := &ValidationError{}
	notes := strings.TrimSpace(in.Notes)
	if in.Minutes != nil && *in.Minutes < 0 {
		verr.Add("minutes", "Minutes must not be negative.")
	}
	if in.Minutes == nil && notes == "" {
		verr.Add("minutes", "Enter minutes or notes.")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	entry := model.NewLog(target, in.Minutes, notesPtr)
	if err := s.logs.Create(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *LogService) List(ctx context.Context, target model.LogTarget) ([]model.Log, error) {
	return s.logs.ListFor(ctx, target)
}
