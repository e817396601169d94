package automation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// IdleScanner finds tickets that have sat untouched past the idle
// threshold and feeds them through the idle trigger. The ticket query is
// skipped entirely while no active idle rules exist.
type IdleScanner struct {
	tickets   repository.TicketRepository
	rules     repository.AutomationRuleRepository
	engine    *Engine
	threshold time.Duration
	batch     int
	logger    *zap.Logger
}

// NewIdleScanner instantiates scanner.
func NewIdleScanner(tickets repository.TicketRepository, rules repository.AutomationRuleRepository, engine *Engine, threshold time.Duration, batch int, logger *zap.Logger) *IdleScanner {
	return &IdleScanner{
		tickets:   tickets,
		rules:     rules,
		engine:    engine,
		threshold: threshold,
		batch:     batch,
		logger:    logger,
	}
}

// Scan runs one pass and returns how many idle tickets were processed.
// Each pass is bounded by the batch limit; stragglers are picked up on
// the next tick.
func (s *IdleScanner) Scan(ctx context.Context) (int, error) {
	rules, err := s.rules.ListActiveByTrigger(ctx, domain.TriggerTicketIdle)
	if err != nil {
		return 0, fmt.Errorf("load idle rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-s.threshold)
	tickets, err := s.tickets.ListIdleBefore(ctx, cutoff, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list idle tickets: %w", err)
	}
	if len(tickets) == 0 {
		return 0, nil
	}

	for i := range tickets {
		s.engine.runRules(ctx, rules, domain.TriggerTicketIdle, &tickets[i])
	}

	s.logger.Info("idle scan completed",
		zap.Int("tickets", len(tickets)),
		zap.Int("rules", len(rules)))
	return len(tickets), nil
}
