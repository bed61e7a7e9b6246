package ports

import (
	"context"
	"time"

	"github.com/lorrc/ticket-triage/internal/core/domain"
)

// TicketFilter narrows a ticket listing. Empty fields do not filter.
type TicketFilter struct {
	Category string
	Priority string
	Status   string
	Search   string
	Ordering string
}

// TicketRepository defines the persistence port for tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]*domain.Ticket, error)
}

// StatsRepository exposes the store-side aggregates the stats service needs.
type StatsRepository interface {
	CountTickets(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status domain.Status) (int64, error)
	EarliestCreatedAt(ctx context.Context) (*time.Time, error)
	CountByPriority(ctx context.Context) (map[domain.Priority]int64, error)
	CountByCategory(ctx context.Context) (map[domain.Category]int64, error)
}

// TransactionManager defines the port for running atomic operations.
// Repositories pick up the transaction from the context passed to fn.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
