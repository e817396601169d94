package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// RuleStats summarizes the rule store for the admin API.
type RuleStats struct {
	TotalRules  int64
	ActiveRules int64
}

// AutomationRuleRepository encapsulates rule persistence. The trigger
// dispatcher depends on ListActiveByTrigger returning rules in
// execution order: priority_order ascending, then original creation
// order as the stable tie-break.
type AutomationRuleRepository interface {
	Create(ctx context.Context, rule *domain.AutomationRule) error
	Update(ctx context.Context, rule *domain.AutomationRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.AutomationRule, error)
	List(ctx context.Context, limit, offset int) ([]domain.AutomationRule, error)
	ListActiveByTrigger(ctx context.Context, trigger domain.TriggerEvent) ([]domain.AutomationRule, error)
	Stats(ctx context.Context) (*RuleStats, error)
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewAutomationRuleRepository instantiates repository.
func NewAutomationRuleRepository(pool *pgxpool.Pool) AutomationRuleRepository {
	return &ruleRepository{pool: pool}
}

const ruleColumns = `
        id, name, description, trigger_event, conditions, action_type, action_params,
        priority_order, is_active, stop_processing, created_by, created_at, updated_at`

func (r *ruleRepository) Create(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, params, err := encodeRuleJSON(rule)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO automation_rules (name, description, trigger_event, conditions,
            action_type, action_params, priority_order, is_active, stop_processing, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Description,
		rule.TriggerEvent,
		conditions,
		rule.ActionType,
		params,
		rule.PriorityOrder,
		rule.IsActive,
		rule.StopProcessing,
		rule.CreatedByID,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepository) Update(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, params, err := encodeRuleJSON(rule)
	if err != nil {
		return err
	}
	const query = `
        UPDATE automation_rules SET name=$1, description=$2, trigger_event=$3, conditions=$4,
            action_type=$5, action_params=$6, priority_order=$7, is_active=$8,
            stop_processing=$9, updated_at=NOW()
        WHERE id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		rule.Name,
		rule.Description,
		rule.TriggerEvent,
		conditions,
		rule.ActionType,
		params,
		rule.PriorityOrder,
		rule.IsActive,
		rule.StopProcessing,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a rule. Execution logs keep their nullable rule
// reference via ON DELETE SET NULL on the foreign key.
func (r *ruleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM automation_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, id string) (*domain.AutomationRule, error) {
	query := `SELECT` + ruleColumns + ` FROM automation_rules WHERE id=$1`
	return scanRule(r.pool.QueryRow(ctx, query, id))
}

func (r *ruleRepository) List(ctx context.Context, limit, offset int) ([]domain.AutomationRule, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT`+ruleColumns+`
        FROM automation_rules
        ORDER BY priority_order ASC, created_at ASC, id ASC
        LIMIT %d OFFSET %d`, limit, offset)
	return r.fetchMany(ctx, query)
}

func (r *ruleRepository) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerEvent) ([]domain.AutomationRule, error) {
	query := `SELECT` + ruleColumns + `
        FROM automation_rules
        WHERE trigger_event=$1 AND is_active=TRUE
        ORDER BY priority_order ASC, created_at ASC, id ASC`
	return r.fetchMany(ctx, query, trigger)
}

func (r *ruleRepository) Stats(ctx context.Context) (*RuleStats, error) {
	const query = `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active = TRUE)
        FROM automation_rules`
	var stats RuleStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalRules, &stats.ActiveRules); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *ruleRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.AutomationRule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

func scanRule(row pgx.Row) (*domain.AutomationRule, error) {
	var (
		rule       domain.AutomationRule
		conditions []byte
		params     []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&rule.TriggerEvent,
		&conditions,
		&rule.ActionType,
		&params,
		&rule.PriorityOrder,
		&rule.IsActive,
		&rule.StopProcessing,
		&rule.CreatedByID,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("decode rule conditions: %w", err)
		}
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &rule.ActionParams); err != nil {
			return nil, fmt.Errorf("decode rule action params: %w", err)
		}
	}
	return &rule, nil
}

func encodeRuleJSON(rule *domain.AutomationRule) ([]byte, []byte, error) {
	if rule.Conditions == nil {
		rule.Conditions = []domain.Condition{}
	}
	if rule.ActionParams == nil {
		rule.ActionParams = domain.ActionParams{}
	}
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode rule conditions: %w", err)
	}
	params, err := json.Marshal(rule.ActionParams)
	if err != nil {
		return nil, nil, fmt.Errorf("encode rule action params: %w", err)
	}
	return conditions, params, nil
}
