package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ExecutionStats counts recorded rule executions by outcome.
type ExecutionStats struct {
	Total   int64
	Success int64
	Failed  int64
	Skipped int64
}

// ExecutionLogFilter narrows log listings.
type ExecutionLogFilter struct {
	TicketID *string
	RuleID   *string
	Outcome  *domain.ExecutionOutcome
	Limit    int
	Offset   int
}

// RuleExecutionLogRepository persists the immutable audit record of
// rule evaluation attempts. Records are only ever created.
type RuleExecutionLogRepository interface {
	Create(ctx context.Context, entry *domain.RuleExecutionLog) error
	List(ctx context.Context, filter ExecutionLogFilter) ([]domain.RuleExecutionLog, error)
	Stats(ctx context.Context) (*ExecutionStats, error)
}

type executionLogRepository struct {
	pool *pgxpool.Pool
}

// NewRuleExecutionLogRepository instantiates repository.
func NewRuleExecutionLogRepository(pool *pgxpool.Pool) RuleExecutionLogRepository {
	return &executionLogRepository{pool: pool}
}

func (r *executionLogRepository) Create(ctx context.Context, entry *domain.RuleExecutionLog) error {
	const query = `
        INSERT INTO rule_execution_logs (rule_id, ticket_id, outcome, action_taken, error_message)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, executed_at`
	return r.pool.QueryRow(ctx, query,
		entry.RuleID,
		entry.TicketID,
		entry.Outcome,
		entry.ActionTaken,
		entry.ErrorMessage,
	).Scan(&entry.ID, &entry.ExecutedAt)
}

func (r *executionLogRepository) List(ctx context.Context, filter ExecutionLogFilter) ([]domain.RuleExecutionLog, error) {
	base := `SELECT id, rule_id, ticket_id, outcome, action_taken, error_message, executed_at
             FROM rule_execution_logs`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.RuleID != nil {
		args = append(args, *filter.RuleID)
		clauses = append(clauses, fmt.Sprintf("rule_id=$%d", len(args)))
	}
	if filter.Outcome != nil {
		args = append(args, *filter.Outcome)
		clauses = append(clauses, fmt.Sprintf("outcome=$%d", len(args)))
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
		fmt.Sprintf(" ORDER BY executed_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RuleExecutionLog
	for rows.Next() {
		entry, err := scanExecutionLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *executionLogRepository) Stats(ctx context.Context) (*ExecutionStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE outcome = 'success'),
               COUNT(*) FILTER (WHERE outcome = 'failed'),
               COUNT(*) FILTER (WHERE outcome = 'skipped')
        FROM rule_execution_logs`
	var stats ExecutionStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Success, &stats.Failed, &stats.Skipped); err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanExecutionLog(row pgx.Row) (*domain.RuleExecutionLog, error) {
	var entry domain.RuleExecutionLog
	if err := row.Scan(
		&entry.ID,
		&entry.RuleID,
		&entry.TicketID,
		&entry.Outcome,
		&entry.ActionTaken,
		&entry.ErrorMessage,
		&entry.ExecutedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
