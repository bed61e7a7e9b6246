package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRepository_EmptyTable(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := NewStatsRepository(testPool)

	total, err := repo.CountTickets(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	earliest, err := repo.EarliestCreatedAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, earliest)

	byPriority, err := repo.CountByPriority(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NewPriorityBreakdown(), byPriority)

	byCategory, err := repo.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NewCategoryBreakdown(), byCategory)
}

func TestStatsRepository_Aggregates(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	tickets := NewTicketRepository(testPool)
	repo := NewStatsRepository(testPool)

	first := seedTicket(t, tickets, "One", "d", domain.CategoryBilling, domain.PriorityHigh, domain.StatusOpen)
	seedTicket(t, tickets, "Two", "d", domain.CategoryBilling, domain.PriorityLow, domain.StatusOpen)
	seedTicket(t, tickets, "Three", "d", domain.CategoryTechnical, domain.PriorityHigh, domain.StatusClosed)

	total, err := repo.CountTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	open, err := repo.CountByStatus(ctx, domain.StatusOpen)
	require.NoError(t, err)
	assert.Equal(t, int64(2), open)

	earliest, err := repo.EarliestCreatedAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.True(t, first.CreatedAt.Equal(*earliest))

	byPriority, err := repo.CountByPriority(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Priority]int64{"low": 1, "medium": 0, "high": 2, "critical": 0}, byPriority)

	byCategory, err := repo.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Category]int64{"billing": 2, "technical": 1, "account": 0, "general": 0}, byCategory)
}

func TestTransactionManager(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	txm := NewTransactionManager(testPool)
	tickets := NewTicketRepository(testPool)
	stats := NewStatsRepository(testPool)

	t.Run("error rolls back", func(t *testing.T) {
		err := txm.WithTransaction(ctx, func(ctx context.Context) error {
			seedCtxTicket(t, ctx, tickets, "Rolled back")
			return errors.New("abort")
		})
		require.EqualError(t, err, "abort")

		total, err := stats.CountTickets(ctx)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("success commits", func(t *testing.T) {
		err := txm.WithTransaction(ctx, func(ctx context.Context) error {
			seedCtxTicket(t, ctx, tickets, "Committed")
			return nil
		})
		require.NoError(t, err)

		total, err := stats.CountTickets(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("read-only transaction rejects writes", func(t *testing.T) {
		err := txm.WithReadOnlyTransaction(ctx, func(ctx context.Context) error {
			_, err := tickets.Create(ctx, &domain.Ticket{
				Title:       "Nope",
				Description: "d",
				Category:    domain.CategoryGeneral,
				Priority:    domain.PriorityLow,
				Status:      domain.StatusOpen,
			})
			return err
		})
		assert.Error(t, err)
	})

	t.Run("read-only transaction sees one snapshot", func(t *testing.T) {
		err := txm.WithReadOnlyTransaction(ctx, func(txCtx context.Context) error {
			before, err := stats.CountTickets(txCtx)
			if err != nil {
				return err
			}

			// A write outside the transaction is not visible inside it.
			seedCtxTicket(t, ctx, tickets, "Concurrent")

			after, err := stats.CountTickets(txCtx)
			if err != nil {
				return err
			}
			assert.Equal(t, before, after)
			return nil
		})
		require.NoError(t, err)
	})

	countTickets := func(t *testing.T) int64 {
		t.Helper()
		total, err := stats.CountTickets(ctx)
		require.NoError(t, err)
		return total
	}

	t.Run("nested write joins the outer transaction", func(t *testing.T) {
		before := countTickets(t)
		err := txm.WithTransaction(ctx, func(outer context.Context) error {
			seedCtxTicket(t, outer, tickets, "Outer")
			return txm.WithTransaction(outer, func(inner context.Context) error {
				seedCtxTicket(t, inner, tickets, "Inner")
				return errors.New("inner failed")
			})
		})
		require.EqualError(t, err, "inner failed")
		assert.Equal(t, before, countTickets(t))
	})

	t.Run("write inside a snapshot is refused", func(t *testing.T) {
		called := false
		err := txm.WithReadOnlyTransaction(ctx, func(ctx context.Context) error {
			return txm.WithTransaction(ctx, func(context.Context) error {
				called = true
				return nil
			})
		})
		assert.ErrorIs(t, err, ErrWriteInReadOnly)
		assert.False(t, called)
	})

	t.Run("snapshot inside a write reuses it", func(t *testing.T) {
		err := txm.WithTransaction(ctx, func(outer context.Context) error {
			seedCtxTicket(t, outer, tickets, "Visible to the inner read")
			return txm.WithReadOnlyTransaction(outer, func(inner context.Context) error {
				total, err := stats.CountTickets(inner)
				require.NoError(t, err)
				assert.Equal(t, countTickets(t)+1, total)
				return errors.New("discard")
			})
		})
		require.EqualError(t, err, "discard")
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		before := countTickets(t)
		assert.PanicsWithValue(t, "boom", func() {
			_ = txm.WithTransaction(ctx, func(ctx context.Context) error {
				seedCtxTicket(t, ctx, tickets, "Panicked")
				panic("boom")
			})
		})
		assert.Equal(t, before, countTickets(t))
	})

	t.Run("cancelled context still rolls back", func(t *testing.T) {
		before := countTickets(t)
		cancelCtx, cancel := context.WithCancel(ctx)
		err := txm.WithTransaction(cancelCtx, func(ctx context.Context) error {
			seedCtxTicket(t, ctx, tickets, "Cancelled")
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, before, countTickets(t))
	})
}

func seedCtxTicket(t *testing.T, ctx context.Context, repo *TicketRepository, title string) {
	t.Helper()
	_, err := repo.Create(ctx, &domain.Ticket{
		Title:       title,
		Description: "created at " + time.Now().Format(time.RFC3339),
		Category:    domain.CategoryGeneral,
		Priority:    domain.PriorityLow,
		Status:      domain.StatusOpen,
	})
	require.NoError(t, err)
}
