package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

type MockDecisionStore struct {
	mock.Mock
}

func (m *MockDecisionStore) InsertBatch(ctx context.Context, decisions []domain.RoutingDecision) error {
	args := m.Called(ctx, decisions)
	return args.Error(0)
}

func (m *MockDecisionStore) CountOutcomes(ctx context.Context, filter domain.StatisticsFilter) (domain.OutcomeCounts, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.OutcomeCounts), args.Error(1)
}

func TestStatisticsService_Statistics(t *testing.T) {
	store := new(MockDecisionStore)
	customer := int64(7)
	filter := domain.StatisticsFilter{CustomerID: &customer}
	store.On("CountOutcomes", mock.Anything, filter).
		Return(domain.OutcomeCounts{Total: 8, Success: 6, Fallback: 1, NoRoute: 1, AvgDecisionTimeMs: 0.4}, nil).Once()

	stats, err := NewStatisticsService(store).Statistics(context.Background(), filter)

	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Total)
	assert.Equal(t, 75.0, stats.SuccessRate)
	assert.Equal(t, 12.5, stats.FallbackRate)
	assert.Equal(t, 0.4, stats.AvgDecisionTimeMs)
	store.AssertExpectations(t)
}

func TestStatisticsService_StoreError(t *testing.T) {
	store := new(MockDecisionStore)
	store.On("CountOutcomes", mock.Anything, mock.Anything).Return(domain.OutcomeCounts{}, errors.New("timeout")).Once()

	_, err := NewStatisticsService(store).Statistics(context.Background(), domain.StatisticsFilter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
