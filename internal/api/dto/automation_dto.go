package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// ConditionDTO is one field/value pair; order carries through to
// evaluation.
type ConditionDTO struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// RuleRequest payload for create and update.
type RuleRequest struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	TriggerEvent   string            `json:"trigger_event"`
	Conditions     []ConditionDTO    `json:"conditions"`
	ActionType     string            `json:"action_type"`
	ActionParams   map[string]string `json:"action_params"`
	PriorityOrder  int               `json:"priority_order"`
	IsActive       *bool             `json:"is_active"`
	StopProcessing bool              `json:"stop_processing"`
}

// RuleResponse is the full rule representation.
type RuleResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	TriggerEvent   string            `json:"trigger_event"`
	Conditions     []ConditionDTO    `json:"conditions"`
	ActionType     string            `json:"action_type"`
	ActionParams   map[string]string `json:"action_params"`
	PriorityOrder  int               `json:"priority_order"`
	IsActive       bool              `json:"is_active"`
	StopProcessing bool              `json:"stop_processing"`
	CreatedByID    *string           `json:"created_by_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ExecutionLogResponse is one audit record of a rule execution.
type ExecutionLogResponse struct {
	ID           string    `json:"id"`
	RuleID       *string   `json:"rule_id"`
	TicketID     string    `json:"ticket_id"`
	Outcome      string    `json:"outcome"`
	ActionTaken  string    `json:"action_taken"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// AutomationStatsResponse aggregates rule and execution counters.
type AutomationStatsResponse struct {
	TotalRules  int64 `json:"total_rules"`
	ActiveRules int64 `json:"active_rules"`
	Executions  struct {
		Total   int64 `json:"total"`
		Success int64 `json:"success"`
		Failed  int64 `json:"failed"`
		Skipped int64 `json:"skipped"`
	} `json:"executions"`
}

// Conditions converts request conditions to domain form.
func (r RuleRequest) DomainConditions() []domain.Condition {
	conditions := make([]domain.Condition, 0, len(r.Conditions))
	for _, condition := range r.Conditions {
		conditions = append(conditions, domain.Condition{Field: condition.Field, Value: condition.Value})
	}
	return conditions
}

// FromRule maps a domain rule.
func FromRule(rule *domain.AutomationRule) RuleResponse {
	conditions := make([]ConditionDTO, 0, len(rule.Conditions))
	for _, condition := range rule.Conditions {
		conditions = append(conditions, ConditionDTO{Field: condition.Field, Value: condition.Value})
	}
	return RuleResponse{
		ID:             rule.ID,
		Name:           rule.Name,
		Description:    rule.Description,
		TriggerEvent:   string(rule.TriggerEvent),
		Conditions:     conditions,
		ActionType:     string(rule.ActionType),
		ActionParams:   rule.ActionParams,
		PriorityOrder:  rule.PriorityOrder,
		IsActive:       rule.IsActive,
		StopProcessing: rule.StopProcessing,
		CreatedByID:    rule.CreatedByID,
		CreatedAt:      rule.CreatedAt,
		UpdatedAt:      rule.UpdatedAt,
	}
}

// FromExecutionLog maps a domain execution log entry.
func FromExecutionLog(entry *domain.RuleExecutionLog) ExecutionLogResponse {
	return ExecutionLogResponse{
		ID:           entry.ID,
		RuleID:       entry.RuleID,
		TicketID:     entry.TicketID,
		Outcome:      string(entry.Outcome),
		ActionTaken:  entry.ActionTaken,
		ErrorMessage: entry.ErrorMessage,
		ExecutedAt:   entry.ExecutedAt,
	}
}

// FromAutomationStats maps the aggregated counters.
func FromAutomationStats(rules *repository.RuleStats, executions *repository.ExecutionStats) AutomationStatsResponse {
	var resp AutomationStatsResponse
	resp.TotalRules = rules.TotalRules
	resp.ActiveRules = rules.ActiveRules
	resp.Executions.Total = executions.Total
	resp.Executions.Success = executions.Success
	resp.Executions.Failed = executions.Failed
	resp.Executions.Skipped = executions.Skipped
	return resp
}
