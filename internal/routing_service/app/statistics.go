package app

import (
	"context"
	"fmt"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// StatisticsService reports routing statistics from the decision store.
type StatisticsService struct {
	store domain.DecisionStore
}

func NewStatisticsService(store domain.DecisionStore) *StatisticsService {
	return &StatisticsService{store: store}
}

// Statistics summarises the recorded decisions that pass filter.
func (s *StatisticsService) Statistics(ctx context.Context, filter domain.StatisticsFilter) (domain.Statistics, error) {
	counts, err := s.store.CountOutcomes(ctx, filter)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("counting routing outcomes: %w", err)
	}
	return domain.NewStatistics(counts), nil
}
