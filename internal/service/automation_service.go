package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util"
)

// AutomationService manages the rule catalog and its audit trail.
// Execution itself lives in the engine; this service only exists for
// staff administration.
type AutomationService struct {
	rules  repository.AutomationRuleRepository
	logs   repository.RuleExecutionLogRepository
	logger *zap.Logger
}

// AutomationDependencies bundles automation admin wiring.
type AutomationDependencies struct {
	RuleRepo repository.AutomationRuleRepository
	LogRepo  repository.RuleExecutionLogRepository
	Logger   *zap.Logger
}

// RuleInput describes a rule create/update payload.
type RuleInput struct {
	Name           string
	Description    string
	TriggerEvent   string
	Conditions     []domain.Condition
	ActionType     string
	ActionParams   domain.ActionParams
	PriorityOrder  int
	IsActive       bool
	StopProcessing bool
}

// NewAutomationService constructs the service.
func NewAutomationService(deps AutomationDependencies) *AutomationService {
	return &AutomationService{rules: deps.RuleRepo, logs: deps.LogRepo, logger: deps.Logger}
}

// CreateRule validates and stores a new rule.
func (s *AutomationService) CreateRule(ctx context.Context, creatorID string, input RuleInput) (*domain.AutomationRule, error) {
	rule, err := buildRule(input)
	if err != nil {
		return nil, err
	}
	rule.CreatedByID = &creatorID
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, util.MapError(err)
	}
	s.logger.Info("automation rule created",
		zap.String("rule_id", rule.ID),
		zap.String("trigger", string(rule.TriggerEvent)),
		zap.String("action", string(rule.ActionType)))
	return rule, nil
}

// UpdateRule replaces a rule's definition.
func (s *AutomationService) UpdateRule(ctx context.Context, id string, input RuleInput) (*domain.AutomationRule, error) {
	existing, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	rule, err := buildRule(input)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.CreatedByID = existing.CreatedByID
	rule.CreatedAt = existing.CreatedAt
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, util.MapError(err)
	}
	return rule, nil
}

// DeleteRule removes a rule; its execution logs survive with a null
// rule reference.
func (s *AutomationService) DeleteRule(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return util.MapError(err)
	}
	s.logger.Info("automation rule deleted", zap.String("rule_id", id))
	return nil
}

// GetRule fetches one rule.
func (s *AutomationService) GetRule(ctx context.Context, id string) (*domain.AutomationRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	return rule, nil
}

// ListRules returns the catalog page.
func (s *AutomationService) ListRules(ctx context.Context, limit, offset int) ([]domain.AutomationRule, error) {
	return s.rules.List(ctx, limit, offset)
}

// ListLogs returns filtered execution log entries.
func (s *AutomationService) ListLogs(ctx context.Context, filter repository.ExecutionLogFilter) ([]domain.RuleExecutionLog, error) {
	return s.logs.List(ctx, filter)
}

// Stats aggregates rule counts and execution outcomes.
func (s *AutomationService) Stats(ctx context.Context) (*repository.RuleStats, *repository.ExecutionStats, error) {
	ruleStats, err := s.rules.Stats(ctx)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	executionStats, err := s.logs.Stats(ctx)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	return ruleStats, executionStats, nil
}

func buildRule(input RuleInput) (*domain.AutomationRule, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, util.NewValidationError("rule name is required", nil)
	}
	trigger, ok := domain.ParseTriggerEvent(input.TriggerEvent)
	if !ok {
		return nil, util.NewValidationError("unknown trigger event", map[string]any{"trigger_event": input.TriggerEvent})
	}
	actionType, ok := domain.ParseActionType(input.ActionType)
	if !ok {
		return nil, util.NewValidationError("unknown action type", map[string]any{"action_type": input.ActionType})
	}
	for _, condition := range input.Conditions {
		if strings.TrimSpace(condition.Field) == "" {
			return nil, util.NewValidationError("condition field cannot be empty", nil)
		}
	}
	return &domain.AutomationRule{
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		TriggerEvent:   trigger,
		Conditions:     input.Conditions,
		ActionType:     actionType,
		ActionParams:   input.ActionParams,
		PriorityOrder:  input.PriorityOrder,
		IsActive:       input.IsActive,
		StopProcessing: input.StopProcessing,
	}, nil
}
