package service

import (
	"context"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/repository"
	apperrors "github.com/spec-kit/ticket-desk/pkg/errorutil"
)

// StatsService derives pipeline statistics from live store state. It never
// caches and participates in no transaction.
type StatsService struct {
	store repository.Store
}

// NewStatsService constructs the service.
func NewStatsService(store repository.Store) *StatsService {
	return &StatsService{store: store}
}

// Compute returns per-pipeline active-ticket counts and the grand total.
func (s *StatsService) Compute(ctx context.Context) (domain.PipelineStats, error) {
	stats, err := s.store.Tickets().PipelineCounts(ctx)
	if err != nil {
		return domain.PipelineStats{}, apperrors.NewStorageFailure(err)
	}
	return stats, nil
}
