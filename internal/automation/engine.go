package automation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Engine dispatches trigger events against the active rule set for that
// trigger and records an execution log entry for every matched rule.
type Engine struct {
	rules   repository.AutomationRuleRepository
	logs    repository.RuleExecutionLogRepository
	actions *ActionSet
	matcher *Matcher
	metrics *observability.Metrics
	logger  *zap.Logger
}

// EngineDependencies carries engine wiring.
type EngineDependencies struct {
	Rules   repository.AutomationRuleRepository
	Logs    repository.RuleExecutionLogRepository
	Actions *ActionSet
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewEngine instantiates engine with dependencies.
func NewEngine(deps EngineDependencies) *Engine {
	return &Engine{
		rules:   deps.Rules,
		logs:    deps.Logs,
		actions: deps.Actions,
		matcher: NewMatcher(deps.Logger),
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Run evaluates all active rules for the trigger against one ticket.
// Rules execute in priority order; a matched rule with stop_processing
// halts the pass whether or not its action succeeded. Only a failure to
// load the rule set is returned; per-rule errors are absorbed into the
// execution log so one bad rule cannot block its siblings.
func (e *Engine) Run(ctx context.Context, trigger domain.TriggerEvent, ticket *domain.Ticket) error {
	rules, err := e.rules.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return fmt.Errorf("load rules for %s: %w", trigger, err)
	}
	e.runRules(ctx, rules, trigger, ticket)
	return nil
}

// RunBatch evaluates the trigger's rules against every ticket in the
// batch, loading the rule set once. It returns how many tickets were
// processed; an empty rule set processes none.
func (e *Engine) RunBatch(ctx context.Context, trigger domain.TriggerEvent, tickets []domain.Ticket) (int, error) {
	rules, err := e.rules.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return 0, fmt.Errorf("load rules for %s: %w", trigger, err)
	}
	if len(rules) == 0 {
		return 0, nil
	}
	for i := range tickets {
		e.runRules(ctx, rules, trigger, &tickets[i])
	}
	return len(tickets), nil
}

func (e *Engine) runRules(ctx context.Context, rules []domain.AutomationRule, trigger domain.TriggerEvent, ticket *domain.Ticket) {
	for i := range rules {
		rule := &rules[i]
		if !e.matcher.Match(rule.Conditions, ticket) {
			continue
		}

		actionTaken, err := e.actions.Execute(ctx, rule, ticket)
		outcome := domain.OutcomeSuccess
		errorMessage := ""
		switch {
		case errors.Is(err, ErrActionSkipped):
			outcome = domain.OutcomeSkipped
			actionTaken = err.Error()
		case err != nil:
			outcome = domain.OutcomeFailed
			errorMessage = err.Error()
			e.logger.Warn("automation action failed",
				zap.String("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.String("ticket_id", ticket.ID),
				zap.String("trigger", string(trigger)),
				zap.Error(err))
		default:
			e.logger.Info("automation rule executed",
				zap.String("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.String("ticket_id", ticket.ID),
				zap.String("action_taken", actionTaken))
		}

		e.recordExecution(ctx, rule, ticket, outcome, actionTaken, errorMessage)
		e.metrics.RecordRuleExecution(string(trigger), string(outcome))

		if rule.StopProcessing {
			break
		}
	}
}

// recordExecution persists one audit entry. A storage failure here is
// logged and dropped: the audit trail must never veto the action that
// already ran.
func (e *Engine) recordExecution(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket, outcome domain.ExecutionOutcome, actionTaken, errorMessage string) {
	ruleID := rule.ID
	entry := &domain.RuleExecutionLog{
		RuleID:       &ruleID,
		TicketID:     ticket.ID,
		Outcome:      outcome,
		ActionTaken:  actionTaken,
		ErrorMessage: errorMessage,
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		e.logger.Error("failed to record rule execution",
			zap.String("rule_id", rule.ID),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}
