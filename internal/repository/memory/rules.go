package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type ruleRepo struct {
	store *Store
}

// Rules returns the automation rule repository view.
func (s *Store) Rules() repository.AutomationRuleRepository {
	return &ruleRepo{store: s}
}

func (r *ruleRepo) Create(_ context.Context, rule *domain.AutomationRule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := r.store.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	r.store.rules = append(r.store.rules, cloneRule(rule))
	return nil
}

func (r *ruleRepo) Update(_ context.Context, rule *domain.AutomationRule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.rules {
		if existing.ID == rule.ID {
			rule.CreatedAt = existing.CreatedAt
			rule.UpdatedAt = r.store.now()
			r.store.rules[i] = cloneRule(rule)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *ruleRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.rules {
		if existing.ID == id {
			r.store.rules = append(r.store.rules[:i], r.store.rules[i+1:]...)
			// execution logs keep a nullable back-reference
			for _, entry := range r.store.logs {
				if entry.RuleID != nil && *entry.RuleID == id {
					entry.RuleID = nil
				}
			}
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *ruleRepo) GetByID(_ context.Context, id string) (*domain.AutomationRule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, rule := range r.store.rules {
		if rule.ID == id {
			return cloneRule(rule), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *ruleRepo) List(_ context.Context, limit, offset int) ([]domain.AutomationRule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ordered := r.orderedLocked(nil)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ordered) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[offset:end], nil
}

func (r *ruleRepo) ListActiveByTrigger(_ context.Context, trigger domain.TriggerEvent) ([]domain.AutomationRule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.orderedLocked(func(rule *domain.AutomationRule) bool {
		return rule.IsActive && rule.TriggerEvent == trigger
	}), nil
}

func (r *ruleRepo) Stats(_ context.Context) (*repository.RuleStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var stats repository.RuleStats
	for _, rule := range r.store.rules {
		stats.TotalRules++
		if rule.IsActive {
			stats.ActiveRules++
		}
	}
	return &stats, nil
}

// orderedLocked returns matching rules in execution order: priority
// ascending, then insertion (creation) order as the stable tie-break.
func (r *ruleRepo) orderedLocked(match func(*domain.AutomationRule) bool) []domain.AutomationRule {
	type indexed struct {
		rule *domain.AutomationRule
		seq  int
	}
	var selected []indexed
	for i, rule := range r.store.rules {
		if match == nil || match(rule) {
			selected = append(selected, indexed{rule: rule, seq: i})
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].rule.PriorityOrder != selected[j].rule.PriorityOrder {
			return selected[i].rule.PriorityOrder < selected[j].rule.PriorityOrder
		}
		return selected[i].seq < selected[j].seq
	})
	result := make([]domain.AutomationRule, 0, len(selected))
	for _, item := range selected {
		result = append(result, *cloneRule(item.rule))
	}
	return result
}
