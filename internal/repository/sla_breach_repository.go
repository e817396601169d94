package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// BreachFilter narrows breach listings.
type BreachFilter struct {
	TicketID *string
	Type     *domain.BreachType
	Notified *bool
	Limit    int
	Offset   int
}

// SLABreachRepository persists immutable breach records. Create reports
// whether a row was actually inserted: the table carries a unique
// (ticket_id, breach_type) constraint and the insert is
// on-conflict-do-nothing, so a concurrent duplicate is absorbed rather
// than erroring.
type SLABreachRepository interface {
	Create(ctx context.Context, breach *domain.SLABreach) (bool, error)
	Exists(ctx context.Context, ticketID string, breachType domain.BreachType) (bool, error)
	MarkNotified(ctx context.Context, id string) error
	List(ctx context.Context, filter BreachFilter) ([]domain.SLABreach, error)
	Count(ctx context.Context) (int64, error)
}

type slaBreachRepository struct {
	pool *pgxpool.Pool
}

// NewSLABreachRepository instantiates repository.
func NewSLABreachRepository(pool *pgxpool.Pool) SLABreachRepository {
	return &slaBreachRepository{pool: pool}
}

func (r *slaBreachRepository) Create(ctx context.Context, breach *domain.SLABreach) (bool, error) {
	const query = `
        INSERT INTO sla_breaches (ticket_id, policy_id, breach_type, deadline, notified)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (ticket_id, breach_type) DO NOTHING
        RETURNING id, breached_at`
	err := r.pool.QueryRow(ctx, query,
		breach.TicketID,
		breach.PolicyID,
		breach.Type,
		breach.Deadline,
		breach.Notified,
	).Scan(&breach.ID, &breach.BreachedAt)
	if err == pgx.ErrNoRows {
		// conflict: a breach of this type already exists for the ticket
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *slaBreachRepository) Exists(ctx context.Context, ticketID string, breachType domain.BreachType) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM sla_breaches WHERE ticket_id=$1 AND breach_type=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketID, breachType).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *slaBreachRepository) MarkNotified(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE sla_breaches SET notified=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaBreachRepository) List(ctx context.Context, filter BreachFilter) ([]domain.SLABreach, error) {
	base := `SELECT id, ticket_id, policy_id, breach_type, deadline, breached_at, notified
             FROM sla_breaches`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("breach_type=$%d", len(args)))
	}
	if filter.Notified != nil {
		args = append(args, *filter.Notified)
		clauses = append(clauses, fmt.Sprintf("notified=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := base + " WHERE " + strings.Join(clauses, " AND ") +
		fmt.Sprintf(" ORDER BY breached_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLABreach
	for rows.Next() {
		var breach domain.SLABreach
		if err := rows.Scan(
			&breach.ID,
			&breach.TicketID,
			&breach.PolicyID,
			&breach.Type,
			&breach.Deadline,
			&breach.BreachedAt,
			&breach.Notified,
		); err != nil {
			return nil, err
		}
		result = append(result, breach)
	}
	return result, rows.Err()
}

func (r *slaBreachRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sla_breaches`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
