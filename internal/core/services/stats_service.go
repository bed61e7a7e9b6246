package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// StatsService aggregates ticket statistics from the store on every call.
type StatsService struct {
	repo ports.StatsRepository
	txm  ports.TransactionManager
	now  func() time.Time
}

var _ ports.StatsService = (*StatsService)(nil)

// NewStatsService creates a new stats service. txm may be nil, in which
// case the queries run outside a transaction.
func NewStatsService(repo ports.StatsRepository, txm ports.TransactionManager) *StatsService {
	return &StatsService{repo: repo, txm: txm, now: time.Now}
}

// WithClock overrides the clock used to measure the day span.
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	s.now = now
	return s
}

// ComputeStats returns a fresh snapshot. Every priority and category key is
// present, zero when no ticket has it.
func (s *StatsService) ComputeStats(ctx context.Context) (*domain.StatsSnapshot, error) {
	var snapshot *domain.StatsSnapshot

	run := func(ctx context.Context) error {
		var err error
		snapshot, err = s.compute(ctx)
		return err
	}

	if s.txm == nil {
		if err := run(ctx); err != nil {
			return nil, err
		}
		return snapshot, nil
	}

	if err := s.txm.WithReadOnlyTransaction(ctx, run); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *StatsService) compute(ctx context.Context) (*domain.StatsSnapshot, error) {
	total, err := s.repo.CountTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}

	open, err := s.repo.CountByStatus(ctx, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("count open tickets: %w", err)
	}

	var avg float64
	if total > 0 {
		earliest, err := s.repo.EarliestCreatedAt(ctx)
		if err != nil {
			return nil, fmt.Errorf("earliest ticket: %w", err)
		}
		if earliest != nil {
			avg = AveragePerDay(total, *earliest, s.now())
		}
	}

	priorityCounts, err := s.repo.CountByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	priorities := domain.NewPriorityBreakdown()
	for p, n := range priorityCounts {
		if _, known := priorities[p]; known {
			priorities[p] = n
		}
	}

	categoryCounts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	categories := domain.NewCategoryBreakdown()
	for c, n := range categoryCounts {
		if _, known := categories[c]; known {
			categories[c] = n
		}
	}

	return &domain.StatsSnapshot{
		TotalTickets:      total,
		OpenTickets:       open,
		AvgTicketsPerDay:  avg,
		PriorityBreakdown: priorities,
		CategoryBreakdown: categories,
	}, nil
}

// AveragePerDay divides total by the number of whole days since earliest,
// counting at least one day, and rounds half to even at one decimal place.
func AveragePerDay(total int64, earliest, now time.Time) float64 {
	days := int64(now.Sub(earliest) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return math.RoundToEven(float64(total)/float64(days)*10) / 10
}
