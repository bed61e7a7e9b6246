package services

import (
	"context"
	"log/slog"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// TicketService implements business logic for ticket management
type TicketService struct {
	ticketRepo  ports.TicketRepository
	txm         ports.TransactionManager
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
}

var _ ports.TicketService = (*TicketService)(nil)

// NewTicketService creates a new ticket service. broadcaster may be nil.
func NewTicketService(
	ticketRepo ports.TicketRepository,
	txm ports.TransactionManager,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *TicketService {
	return &TicketService{
		ticketRepo:  ticketRepo,
		txm:         txm,
		broadcaster: broadcaster,
		logger:      logger.With("component", "ticket_service"),
	}
}

// CreateTicket handles the use case for submitting a new ticket
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Priority:    params.Priority,
		Status:      params.Status,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.ticketRepo.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, domain.EventTicketCreated, created)
	return created, nil
}

// GetTicket retrieves a single ticket
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, ticketID)
}

// UpdateTicket applies a partial update inside a transaction
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID int64, update domain.TicketUpdate) (*domain.Ticket, error) {
	var updated *domain.Ticket

	err := s.txm.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}

		if err := ticket.ApplyUpdate(update); err != nil {
			return err
		}

		if update.IsEmpty() {
			updated = ticket
			return nil
		}

		updated, err = s.ticketRepo.Update(ctx, ticket)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !update.IsEmpty() {
		s.broadcast(ctx, domain.EventTicketUpdated, updated)
	}
	return updated, nil
}

// ListTickets returns tickets matching the filter, newest first by default
func (s *TicketService) ListTickets(ctx context.Context, filter ports.TicketFilter) ([]*domain.Ticket, error) {
	return s.ticketRepo.List(ctx, filter)
}

// broadcast never fails the request; the hub drops events it cannot queue.
func (s *TicketService) broadcast(ctx context.Context, eventType domain.EventType, ticket *domain.Ticket) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(domain.NewTicketEvent(eventType, ticket)); err != nil {
		s.logger.WarnContext(ctx, "failed to broadcast ticket event",
			"event_type", eventType,
			"ticket_id", ticket.ID,
			"error", err,
		)
	}
}
