package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/ticket-triage/internal/core/domain"
	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

const ticketColumns = `id, title, description, category, priority, status, created_at, updated_at`

// orderableColumns maps accepted ordering keys to SQL columns.
var orderableColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"category":   "category",
	"priority":   "priority",
	"status":     "status",
	"created_at": "created_at",
}

const defaultOrdering = "created_at DESC, id DESC"

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// Ensure TicketRepository implements the ports.TicketRepository interface.
var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// scanTicket converts a database row to a core domain model.
func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                     domain.Ticket
		category, priority, status string
		createdAt                  pgtype.Timestamptz
		updatedAt                  pgtype.Timestamptz
	)

	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&category,
		&priority,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	ticket.Category = domain.Category(category)
	ticket.Priority = domain.Priority(priority)
	ticket.Status = domain.Status(status)
	ticket.CreatedAt = createdAt.Time.UTC()
	ticket.UpdatedAt = fromTimestamptz(updatedAt)
	return &ticket, nil
}

// Create persists a new ticket entity. The database assigns id and created_at.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `
INSERT INTO tickets (title, description, category, priority, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + ticketColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		string(ticket.Category),
		string(ticket.Priority),
		string(ticket.Status),
	)

	created, err := scanTicket(row)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return created, nil
}

// GetByID retrieves a single ticket by its ID.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return ticket, nil
}

// Update writes every mutable field. created_at is never touched.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `
UPDATE tickets
SET title = $2,
    description = $3,
    category = $4,
    priority = $5,
    status = $6,
    updated_at = COALESCE($7, NOW())
WHERE id = $1
RETURNING ` + ticketColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		string(ticket.Category),
		string(ticket.Priority),
		string(ticket.Status),
		toTimestamptz(ticket.UpdatedAt),
	)

	updated, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	return updated, nil
}

// List returns tickets matching the filter. Filters are exact matches, so a
// value outside an enumeration matches nothing. Each whitespace-separated
// search term must appear in the title or the description.
func (r *TicketRepository) List(ctx context.Context, filter ports.TicketFilter) ([]*domain.Ticket, error) {
	var (
		conditions = []string{
			"($1::text IS NULL OR category = $1)",
			"($2::text IS NULL OR priority = $2)",
			"($3::text IS NULL OR status = $3)",
		}
		args = []any{
			toOptionalText(filter.Category),
			toOptionalText(filter.Priority),
			toOptionalText(filter.Status),
		}
	)

	for _, term := range strings.Fields(filter.Search) {
		args = append(args, containsPattern(term))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY ` + orderByClause(filter.Ordering)

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	return tickets, nil
}

// orderByClause translates an ordering such as "-priority" or
// "status,-created_at" into SQL. Unknown keys are skipped; with nothing
// usable the newest tickets come first.
func orderByClause(ordering string) string {
	var parts []string
	for _, key := range strings.Split(ordering, ",") {
		key = strings.TrimSpace(key)
		direction := "ASC"
		if strings.HasPrefix(key, "-") {
			direction = "DESC"
			key = key[1:]
		}
		column, ok := orderableColumns[key]
		if !ok {
			continue
		}
		parts = append(parts, column+" "+direction)
	}

	if len(parts) == 0 {
		return defaultOrdering
	}
	return strings.Join(parts, ", ") + ", id DESC"
}
