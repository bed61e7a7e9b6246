package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	"github.com/lorrc/ticket-triage/internal/core/mocks"
	"github.com/lorrc/ticket-triage/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAveragePerDay(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		total    int64
		earliest time.Time
		want     float64
	}{
		{"same day counts as one day", 10, now.Add(-2 * time.Hour), 10.0},
		{"just under a day counts as one day", 7, now.Add(-23 * time.Hour), 7.0},
		{"exactly two days", 5, now.Add(-48 * time.Hour), 2.5},
		{"partial days are floored", 10, now.Add(-(3*24 + 20) * time.Hour), 3.3},
		{"rounds to one decimal", 2, now.Add(-3 * 24 * time.Hour), 0.7},
		{"earliest in the future", 4, now.Add(time.Hour), 4.0},
		{"halves round to even downward", 9, now.Add(-4 * 24 * time.Hour), 2.2},
		{"small halves round to even", 1, now.Add(-4 * 24 * time.Hour), 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.AveragePerDay(tt.total, tt.earliest, now))
		})
	}
}

func TestStatsService_ComputeStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("empty store", func(t *testing.T) {
		repo := mocks.NewMockStatsRepository()
		svc := services.NewStatsService(repo, mocks.NewMockTransactionManager()).WithClock(func() time.Time { return now })

		repo.On("CountTickets", ctx).Return(int64(0), nil)
		repo.On("CountByStatus", ctx, domain.StatusOpen).Return(int64(0), nil)
		repo.On("CountByPriority", ctx).Return(map[domain.Priority]int64{}, nil)
		repo.On("CountByCategory", ctx).Return(map[domain.Category]int64{}, nil)

		stats, err := svc.ComputeStats(ctx)

		require.NoError(t, err)
		assert.Equal(t, &domain.StatsSnapshot{
			TotalTickets:      0,
			OpenTickets:       0,
			AvgTicketsPerDay:  0.0,
			PriorityBreakdown: map[domain.Priority]int64{"low": 0, "medium": 0, "high": 0, "critical": 0},
			CategoryBreakdown: map[domain.Category]int64{"billing": 0, "technical": 0, "account": 0, "general": 0},
		}, stats)
		repo.AssertNotCalled(t, "EarliestCreatedAt", ctx)
	})

	t.Run("ten tickets created today", func(t *testing.T) {
		repo := mocks.NewMockStatsRepository()
		svc := services.NewStatsService(repo, mocks.NewMockTransactionManager()).WithClock(func() time.Time { return now })

		earliest := now.Add(-3 * time.Hour)
		repo.On("CountTickets", ctx).Return(int64(10), nil)
		repo.On("CountByStatus", ctx, domain.StatusOpen).Return(int64(6), nil)
		repo.On("EarliestCreatedAt", ctx).Return(&earliest, nil)
		repo.On("CountByPriority", ctx).Return(map[domain.Priority]int64{
			domain.PriorityHigh: 4,
			domain.PriorityLow:  6,
		}, nil)
		repo.On("CountByCategory", ctx).Return(map[domain.Category]int64{
			domain.CategoryBilling: 10,
		}, nil)

		stats, err := svc.ComputeStats(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(10), stats.TotalTickets)
		assert.Equal(t, int64(6), stats.OpenTickets)
		assert.Equal(t, 10.0, stats.AvgTicketsPerDay)
		assert.Equal(t, map[domain.Priority]int64{"low": 6, "medium": 0, "high": 4, "critical": 0}, stats.PriorityBreakdown)
		assert.Equal(t, map[domain.Category]int64{"billing": 10, "technical": 0, "account": 0, "general": 0}, stats.CategoryBreakdown)
	})

	t.Run("unknown stored values are not reported", func(t *testing.T) {
		repo := mocks.NewMockStatsRepository()
		svc := services.NewStatsService(repo, nil).WithClock(func() time.Time { return now })

		earliest := now.Add(-72 * time.Hour)
		repo.On("CountTickets", ctx).Return(int64(3), nil)
		repo.On("CountByStatus", ctx, domain.StatusOpen).Return(int64(3), nil)
		repo.On("EarliestCreatedAt", ctx).Return(&earliest, nil)
		repo.On("CountByPriority", ctx).Return(map[domain.Priority]int64{"urgent": 3}, nil)
		repo.On("CountByCategory", ctx).Return(map[domain.Category]int64{"general": 3}, nil)

		stats, err := svc.ComputeStats(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1.0, stats.AvgTicketsPerDay)
		assert.Len(t, stats.PriorityBreakdown, 4)
		assert.NotContains(t, stats.PriorityBreakdown, domain.Priority("urgent"))
	})

	t.Run("runs in a read-only transaction", func(t *testing.T) {
		repo := mocks.NewMockStatsRepository()
		txm := mocks.NewMockTransactionManager()
		svc := services.NewStatsService(repo, txm)

		repo.On("CountTickets", ctx).Return(int64(0), nil)
		repo.On("CountByStatus", ctx, domain.StatusOpen).Return(int64(0), nil)
		repo.On("CountByPriority", ctx).Return(map[domain.Priority]int64{}, nil)
		repo.On("CountByCategory", ctx).Return(map[domain.Category]int64{}, nil)

		_, err := svc.ComputeStats(ctx)

		require.NoError(t, err)
		txm.AssertCalled(t, "WithReadOnlyTransaction", ctx)
		txm.AssertNotCalled(t, "WithTransaction", ctx)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		repo := mocks.NewMockStatsRepository()
		svc := services.NewStatsService(repo, mocks.NewMockTransactionManager())

		repo.On("CountTickets", ctx).Return(int64(0), errors.New("connection reset"))

		stats, err := svc.ComputeStats(ctx)

		assert.Nil(t, stats)
		assert.ErrorContains(t, err, "connection reset")
	})
}
