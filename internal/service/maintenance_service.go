package service

import (
	"context"

	"go.uber.org/zap"

	"universes/internal/repository"
)

// MaintenanceService runs housekeeping that the request path never does.
type MaintenanceService struct {
	logs   *repository.LogRepository
	logger *zap.Logger
}

func NewMaintenanceService(logs *repository.LogRepository, logger *zap.Logger) *MaintenanceService {
	return &MaintenanceService{logs: logs, logger: logger}
}

// PruneOrphanLogs deletes logs whose task, idea or universe is gone.
// Standalone logs are never touched.
func (s *MaintenanceService) PruneOrphanLogs(ctx context.Context) (int64, error) {
	n, err := s.logs.PruneOrphans(ctx)
	if err != nil {
		s.logger.Error("prune orphan logs failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned orphan logs", zap.Int64("count", n))
	}
	return n, nil
}
