package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/ticket-triage/internal/core/domain"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// StatsRepository runs the aggregate queries behind the stats endpoint.
// Every figure is computed by the database; no rows are loaded.
type StatsRepository struct {
	pool *pgxpool.Pool
}

var _ ports.StatsRepository = (*StatsRepository)(nil)

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) CountTickets(ctx context.Context) (int64, error) {
	var count int64
	if err := GetDBTX(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *StatsRepository) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	err := GetDBTX(ctx, r.pool).
		QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE status = $1`, string(status)).
		Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// EarliestCreatedAt returns nil when the table is empty.
func (r *StatsRepository) EarliestCreatedAt(ctx context.Context) (*time.Time, error) {
	var earliest pgtype.Timestamptz
	if err := GetDBTX(ctx, r.pool).QueryRow(ctx, `SELECT MIN(created_at) FROM tickets`).Scan(&earliest); err != nil {
		return nil, err
	}
	return fromTimestamptz(earliest), nil
}

func (r *StatsRepository) CountByPriority(ctx context.Context) (map[domain.Priority]int64, error) {
	counts, err := r.countGroupedBy(ctx, "priority")
	if err != nil {
		return nil, err
	}

	result := domain.NewPriorityBreakdown()
	for value, count := range counts {
		result[domain.Priority(value)] = count
	}
	return result, nil
}

func (r *StatsRepository) CountByCategory(ctx context.Context) (map[domain.Category]int64, error) {
	counts, err := r.countGroupedBy(ctx, "category")
	if err != nil {
		return nil, err
	}

	result := domain.NewCategoryBreakdown()
	for value, count := range counts {
		result[domain.Category(value)] = count
	}
	return result, nil
}

// countGroupedBy is only called with fixed column names.
func (r *StatsRepository) countGroupedBy(ctx context.Context, column string) (map[string]int64, error) {
	query := fmt.Sprintf(`
SELECT %[1]s, COUNT(*)
FROM tickets
GROUP BY %[1]s
`, column)

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			value string
			count int64
		)
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		counts[value] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
