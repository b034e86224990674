package service

import (
	"context"
	"fmt"
	"strings"

	"universes/internal/model"
	"universes/internal/repository"
)

// IdeaService manages ideas and the pools they live in.
type IdeaService struct {
	ideas *repository.IdeaRepository
	logs  *LogService
}

func NewIdeaService(ideas *repository.IdeaRepository, logs *LogService) *IdeaService {
	return &IdeaService{ideas: ideas, logs: logs}
}

func (s *IdeaService) CreateIdea(ctx context.Context, name, description string) (*model.Idea, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "The name field is required.")
	}
	idea := model.Idea{Name: name, Description: strings.TrimSpace(description)}
	if err := s.ideas.CreateIdea(ctx, &idea); err != nil {
		return nil, err
	}
	return &idea, nil
}

func (s *IdeaService) CreatePool(ctx context.Context, name string) (*model.IdeaPool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "The name field is required.")
	}
	pool := model.IdeaPool{Name: name}
	if err := s.ideas.CreatePool(ctx, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// AssignPools replaces the pools of an idea. primary indexes poolIDs and
// names the one primary pool.
func (s *IdeaService) AssignPools(ctx context.Context, ideaID uint, poolIDs []uint, primary int) ([]model.IdeaPoolIdea, error) {
	if _, err := s.ideas.FindIdea(ctx, ideaID); err != nil {
		return nil, notFound(err, "idea", ideaID)
	}

	verr := &ValidationError{}
	if len(poolIDs) == 0 {
		verr.Add("pool_ids", "Select at least one idea pool.")
	} else if primary < 0 || primary >= len(poolIDs) {
		verr.Add("primary_pool", "Select exactly one primary pool.")
	}
	existing, err := s.ideas.ExistingPoolIDs(ctx, poolIDs)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(poolIDs))
	assignments := make([]repository.PoolAssignment, 0, len(poolIDs))
	for i, id := range poolIDs {
		switch {
		case !existing[id]:
			verr.Add("pool_ids", fmt.Sprintf("Idea pool %d does not exist.", id))
		case seen[id]:
			verr.Add("pool_ids", "Each idea pool can only be selected once.")
		default:
			seen[id] = true
			assignments = append(assignments, repository.PoolAssignment{PoolID: id, Primary: i == primary})
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if err := s.ideas.ReplacePools(ctx, ideaID, assignments); err != nil {
		return nil, err
	}
	return s.ideas.Pools(ctx, ideaID)
}

// Log records time spent on an idea.
func (s *IdeaService) Log(ctx context.Context, ideaID uint, in LogInput) (*model.Log, error) {
	if _, err := s.ideas.FindIdea(ctx, ideaID); err != nil {
		return nil, notFound(err, "idea", ideaID)
	}
	return s.logs.Record(ctx, model.LogOnIdea(ideaID), in)
}
