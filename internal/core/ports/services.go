package ports

import (
	"context"
	"time"

	"github.com/lorrc/ticket-triage/internal/core/domain"
)

// CreateTicketParams defines the input for creating a new ticket.
type CreateTicketParams struct {
	Title       string
	Description string
	Category    domain.Category
	Priority    domain.Priority
	Status      domain.Status
}

// TicketService defines the core business operations for managing tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID int64, update domain.TicketUpdate) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]*domain.Ticket, error)
}

// ClassificationService suggests a category and priority for a description.
// Classify never fails: every internal failure yields the fallback result.
type ClassificationService interface {
	Classify(ctx context.Context, description string) domain.ClassificationResult
}

// StatsService computes aggregate ticket statistics.
type StatsService interface {
	ComputeStats(ctx context.Context) (*domain.StatsSnapshot, error)
}

// CompletionClient sends a system and user prompt to a language model and
// returns the raw text of its reply.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Configured reports whether a credential is present. When false,
	// Complete must not be called.
	Configured() bool
}

// EventBroadcaster pushes real-time events to connected clients.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// Classification outcomes reported to ClassificationMetrics.
const (
	OutcomeSuccess      = "success"
	OutcomeNoCredential = "no_credential"
	OutcomeCallFailed   = "call_failed"
	OutcomeParseFailed  = "parse_failed"
)

// ClassificationMetrics records how classification requests end.
type ClassificationMetrics interface {
	ObserveClassification(outcome string, duration time.Duration)
	IncCorrection(field string)
}
