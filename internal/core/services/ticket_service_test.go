package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/lorrc/ticket-triage/internal/core/mocks"
	"github.com/lorrc/ticket-triage/internal/core/ports"
	"github.com/lorrc/ticket-triage/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storedTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          1,
		Title:       "Charged twice",
		Description: "My card was charged twice this month",
		Category:    domain.CategoryBilling,
		Priority:    domain.PriorityHigh,
		Status:      domain.StatusOpen,
		CreatedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestTicketService_CreateTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockBroadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), mockBroadcaster, discardLogger())

		created := storedTicket()
		mockRepo.On("Create", ctx, mock.MatchedBy(func(ticket *domain.Ticket) bool {
			return ticket.Title == "Charged twice" && ticket.Status == domain.StatusOpen
		})).Return(created, nil)
		mockBroadcaster.On("Broadcast", mock.MatchedBy(func(event domain.Event) bool {
			return event.Type == domain.EventTicketCreated && event.TicketID == 1
		})).Return(nil)

		ticket, err := svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:       "Charged twice",
			Description: "My card was charged twice this month",
			Category:    domain.CategoryBilling,
			Priority:    domain.PriorityHigh,
		})

		require.NoError(t, err)
		assert.Equal(t, created, ticket)
		mockRepo.AssertExpectations(t)
		mockBroadcaster.AssertExpectations(t)
	})

	t.Run("validation error does not reach the store", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockBroadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), mockBroadcaster, discardLogger())

		ticket, err := svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:       "",
			Description: "Something",
			Category:    "shipping",
			Priority:    domain.PriorityLow,
		})

		assert.Nil(t, ticket)
		var validationErr *apperrors.ValidationErrors
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Errors, "title")
		assert.Contains(t, validationErr.Errors, "category")
		mockRepo.AssertNotCalled(t, "Create")
		mockBroadcaster.AssertNotCalled(t, "Broadcast")
	})

	t.Run("broadcast failure does not fail the request", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockBroadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), mockBroadcaster, discardLogger())

		mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(storedTicket(), nil)
		mockBroadcaster.On("Broadcast", mock.Anything).Return(errors.New("hub closed"))

		ticket, err := svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:       "Charged twice",
			Description: "Twice",
			Category:    domain.CategoryBilling,
			Priority:    domain.PriorityHigh,
		})

		require.NoError(t, err)
		assert.NotNil(t, ticket)
	})

	t.Run("works without a broadcaster", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), nil, discardLogger())

		mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(storedTicket(), nil)

		_, err := svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:       "Charged twice",
			Description: "Twice",
			Category:    domain.CategoryBilling,
			Priority:    domain.PriorityHigh,
		})

		require.NoError(t, err)
	})
}

func TestTicketService_GetTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), nil, discardLogger())

		expected := storedTicket()
		mockRepo.On("GetByID", ctx, int64(1)).Return(expected, nil)

		ticket, err := svc.GetTicket(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, expected, ticket)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), nil, discardLogger())

		mockRepo.On("GetByID", ctx, int64(99)).Return(nil, apperrors.ErrTicketNotFound)

		ticket, err := svc.GetTicket(ctx, 99)

		assert.Nil(t, ticket)
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	})
}

func TestTicketService_UpdateTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update persists and broadcasts", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockTx := mocks.NewMockTransactionManager()
		mockBroadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewTicketService(mockRepo, mockTx, mockBroadcaster, discardLogger())

		status := domain.StatusResolved
		resolved := storedTicket()
		resolved.Status = domain.StatusResolved

		mockRepo.On("GetByID", ctx, int64(1)).Return(storedTicket(), nil)
		mockRepo.On("Update", ctx, mock.MatchedBy(func(ticket *domain.Ticket) bool {
			return ticket.Status == domain.StatusResolved && ticket.Priority == domain.PriorityHigh
		})).Return(resolved, nil)
		mockBroadcaster.On("Broadcast", mock.MatchedBy(func(event domain.Event) bool {
			return event.Type == domain.EventTicketUpdated
		})).Return(nil)

		ticket, err := svc.UpdateTicket(ctx, 1, domain.TicketUpdate{Status: &status})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusResolved, ticket.Status)
		assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), ticket.CreatedAt)
		mockTx.AssertCalled(t, "WithTransaction", ctx)
		mockRepo.AssertExpectations(t)
		mockBroadcaster.AssertExpectations(t)
	})

	t.Run("invalid value is rejected before writing", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockBroadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), mockBroadcaster, discardLogger())

		priority := domain.Priority("urgent")
		mockRepo.On("GetByID", ctx, int64(1)).Return(storedTicket(), nil)

		ticket, err := svc.UpdateTicket(ctx, 1, domain.TicketUpdate{Priority: &priority})

		assert.Nil(t, ticket)
		var validationErr *apperrors.ValidationErrors
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Errors, "priority")
		mockRepo.AssertNotCalled(t, "Update")
		mockBroadcaster.AssertNotCalled(t, "Broadcast")
	})

	t.Run("empty update returns current record", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockBroadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), mockBroadcaster, discardLogger())

		mockRepo.On("GetByID", ctx, int64(1)).Return(storedTicket(), nil)

		ticket, err := svc.UpdateTicket(ctx, 1, domain.TicketUpdate{})

		require.NoError(t, err)
		assert.Equal(t, storedTicket(), ticket)
		mockRepo.AssertNotCalled(t, "Update")
		mockBroadcaster.AssertNotCalled(t, "Broadcast")
	})

	t.Run("missing ticket", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), nil, discardLogger())

		title := "New"
		mockRepo.On("GetByID", ctx, int64(5)).Return(nil, apperrors.ErrTicketNotFound)

		ticket, err := svc.UpdateTicket(ctx, 5, domain.TicketUpdate{Title: &title})

		assert.Nil(t, ticket)
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	})

	t.Run("transaction begin failure", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		mockTx := &mocks.MockTransactionManager{}
		svc := services.NewTicketService(mockRepo, mockTx, nil, discardLogger())

		title := "New"
		mockTx.On("WithTransaction", ctx).Return(errors.New("connection refused"))

		ticket, err := svc.UpdateTicket(ctx, 1, domain.TicketUpdate{Title: &title})

		assert.Nil(t, ticket)
		assert.EqualError(t, err, "connection refused")
		mockRepo.AssertNotCalled(t, "GetByID")
	})
}

func TestTicketService_ListTickets(t *testing.T) {
	ctx := context.Background()
	mockRepo := mocks.NewMockTicketRepository()
	svc := services.NewTicketService(mockRepo, mocks.NewMockTransactionManager(), nil, discardLogger())

	filter := ports.TicketFilter{Category: "billing", Search: "charged"}
	expected := []*domain.Ticket{storedTicket()}
	mockRepo.On("List", ctx, filter).Return(expected, nil)

	tickets, err := svc.ListTickets(ctx, filter)

	require.NoError(t, err)
	assert.Equal(t, expected, tickets)
	mockRepo.AssertExpectations(t)
}
