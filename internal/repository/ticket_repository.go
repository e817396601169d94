package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// SLAStats aggregates met/breached counters across tickets that carry a policy.
type SLAStats struct {
	TotalWithPolicy    int64
	ResponseMet        int64
	ResponseBreached   int64
	ResolutionMet      int64
	ResolutionBreached int64
}

// TicketRepository encapsulates ticket persistence. Breach-candidate and
// idle listings are ordered by creation time and capped so periodic
// scans stay bounded.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByKey(ctx context.Context, key string) (*domain.Ticket, error)
	ListResponseBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	ListResolutionBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	ListIdleBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
	ListMissingPolicy(ctx context.Context, limit int) ([]domain.Ticket, error)
	// SetMetFlag persists one met flag and nothing else. Periodic scans
	// call this from outside the per-ticket lock, so a full-row write
	// here could erase a concurrent reply or status change.
	SetMetFlag(ctx context.Context, ticketID string, breachType domain.BreachType, met bool) error
	// AttachPolicy stamps policy and deadlines onto a ticket that still
	// has none. Returns pgx.ErrNoRows when the ticket is gone or a
	// policy landed concurrently.
	AttachPolicy(ctx context.Context, ticketID, policyID string, responseDeadline, resolutionDeadline time.Time) error
	SLAStats(ctx context.Context) (*SLAStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.ticket_key, t.title, t.description, t.category_id, t.priority, t.status,
        t.source, t.tags, t.customer_id, t.assigned_agent_id, t.sla_policy_id,
        t.sla_response_deadline, t.sla_resolution_deadline, t.sla_response_met,
        t.sla_resolution_met, t.first_response_at, t.resolved_at,
        t.is_escalated, t.escalation_level, t.created_at, t.updated_at,
        c.name, c.slug, c.is_active`

const ticketFrom = ` FROM tickets t LEFT JOIN categories c ON c.id = t.category_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_key, title, description, category_id, priority, status,
            source, tags, customer_id, assigned_agent_id, sla_policy_id,
            sla_response_deadline, sla_resolution_deadline, is_escalated, escalation_level)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketKey,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.Priority,
		ticket.Status,
		ticket.Source,
		ticket.Tags,
		ticket.CustomerID,
		ticket.AssignedAgentID,
		ticket.SLAPolicyID,
		ticket.SLAResponseDeadline,
		ticket.SLAResolutionDeadline,
		ticket.IsEscalated,
		ticket.EscalationLevel,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category_id=$3, priority=$4, status=$5,
            source=$6, tags=$7, assigned_agent_id=$8, sla_policy_id=$9,
            sla_response_deadline=$10, sla_resolution_deadline=$11,
            sla_response_met=$12, sla_resolution_met=$13,
            first_response_at=$14, resolved_at=$15,
            is_escalated=$16, escalation_level=$17, updated_at=NOW()
        WHERE id=$18`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.Priority,
		ticket.Status,
		ticket.Source,
		ticket.Tags,
		ticket.AssignedAgentID,
		ticket.SLAPolicyID,
		ticket.SLAResponseDeadline,
		ticket.SLAResolutionDeadline,
		ticket.SLAResponseMet,
		ticket.SLAResolutionMet,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.IsEscalated,
		ticket.EscalationLevel,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) SetMetFlag(ctx context.Context, ticketID string, breachType domain.BreachType, met bool) error {
	column := "sla_response_met"
	if breachType == domain.BreachResolution {
		column = "sla_resolution_met"
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET `+column+`=$1 WHERE id=$2`, met, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) AttachPolicy(ctx context.Context, ticketID, policyID string, responseDeadline, resolutionDeadline time.Time) error {
	const query = `
        UPDATE tickets SET sla_policy_id=$1, sla_response_deadline=$2,
            sla_resolution_deadline=$3
        WHERE id=$4 AND sla_policy_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, policyID, responseDeadline, resolutionDeadline, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketFrom + ` WHERE t.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByKey(ctx context.Context, key string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketFrom + ` WHERE t.ticket_key=$1`
	return r.fetchSingle(ctx, query, key)
}

// ListResponseBreachCandidates returns tickets past their response
// deadline without a first response, still in an answerable status and
// without an existing response breach record.
func (r *ticketRepository) ListResponseBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketFrom + `
        WHERE t.sla_response_deadline < $1
          AND t.first_response_at IS NULL
          AND t.status IN ('open','in_progress','pending')
          AND NOT EXISTS (
              SELECT 1 FROM sla_breaches b
              WHERE b.ticket_id = t.id AND b.breach_type = 'response')
        ORDER BY t.sla_response_deadline ASC
        LIMIT $2`
	return r.fetchMany(ctx, query, now, boundedLimit(limit))
}

// ListResolutionBreachCandidates returns tickets past their resolution
// deadline still in an answerable status and without an existing
// resolution breach record.
func (r *ticketRepository) ListResolutionBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketFrom + `
        WHERE t.sla_resolution_deadline < $1
          AND t.status IN ('open','in_progress','pending')
          AND NOT EXISTS (
              SELECT 1 FROM sla_breaches b
              WHERE b.ticket_id = t.id AND b.breach_type = 'resolution')
        ORDER BY t.sla_resolution_deadline ASC
        LIMIT $2`
	return r.fetchMany(ctx, query, now, boundedLimit(limit))
}

// ListIdleBefore returns workable tickets not updated since cutoff.
func (r *ticketRepository) ListIdleBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketFrom + `
        WHERE t.status IN ('open','assigned','in_progress')
          AND t.updated_at < $1
        ORDER BY t.updated_at ASC
        LIMIT $2`
	return r.fetchMany(ctx, query, cutoff, boundedLimit(limit))
}

// ListMissingPolicy returns unresolved tickets without an SLA policy,
// used by the retroactive repair routine.
func (r *ticketRepository) ListMissingPolicy(ctx context.Context, limit int) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketFrom + `
        WHERE t.sla_policy_id IS NULL
          AND t.status IN ('open','assigned','in_progress','pending')
        ORDER BY t.created_at ASC
        LIMIT $1`
	return r.fetchMany(ctx, query, boundedLimit(limit))
}

func (r *ticketRepository) SLAStats(ctx context.Context) (*SLAStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE sla_response_met = TRUE),
               COUNT(*) FILTER (WHERE sla_response_met = FALSE),
               COUNT(*) FILTER (WHERE sla_resolution_met = TRUE),
               COUNT(*) FILTER (WHERE sla_resolution_met = FALSE)
        FROM tickets WHERE sla_policy_id IS NOT NULL`
	var stats SLAStats
	if err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalWithPolicy,
		&stats.ResponseMet,
		&stats.ResponseBreached,
		&stats.ResolutionMet,
		&stats.ResolutionBreached,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket       domain.Ticket
		categoryName *string
		categorySlug *string
		categoryLive *bool
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketKey,
		&ticket.Title,
		&ticket.Description,
		&ticket.CategoryID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Source,
		&ticket.Tags,
		&ticket.CustomerID,
		&ticket.AssignedAgentID,
		&ticket.SLAPolicyID,
		&ticket.SLAResponseDeadline,
		&ticket.SLAResolutionDeadline,
		&ticket.SLAResponseMet,
		&ticket.SLAResolutionMet,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.IsEscalated,
		&ticket.EscalationLevel,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&categoryName,
		&categorySlug,
		&categoryLive,
	); err != nil {
		return nil, err
	}
	if ticket.CategoryID != nil && categoryName != nil {
		ticket.Category = &domain.Category{
			ID:       *ticket.CategoryID,
			Name:     *categoryName,
			Slug:     derefString(categorySlug),
			IsActive: categoryLive != nil && *categoryLive,
		}
	}
	return &ticket, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boundedLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
