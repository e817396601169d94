package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type policyRepo struct {
	store *Store
}

// Policies returns the SLA policy repository view.
func (s *Store) Policies() repository.SLAPolicyRepository {
	return &policyRepo{store: s}
}

func (r *policyRepo) Create(_ context.Context, policy *domain.SLAPolicy) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	now := r.store.now()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	clone := *policy
	r.store.policies = append(r.store.policies, &clone)
	return nil
}

func (r *policyRepo) Update(_ context.Context, policy *domain.SLAPolicy) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.policies {
		if existing.ID == policy.ID {
			policy.CreatedAt = existing.CreatedAt
			policy.UpdatedAt = r.store.now()
			clone := *policy
			r.store.policies[i] = &clone
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *policyRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.policies {
		if existing.ID == id {
			r.store.policies = append(r.store.policies[:i], r.store.policies[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *policyRepo) GetByID(_ context.Context, id string) (*domain.SLAPolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, policy := range r.store.policies {
		if policy.ID == id {
			clone := *policy
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// GetActiveByPriority picks the most recently created active policy so
// selection is deterministic when several are active for one priority.
func (r *policyRepo) GetActiveByPriority(_ context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var best *domain.SLAPolicy
	for _, policy := range r.store.policies {
		if !policy.IsActive || policy.Priority != priority {
			continue
		}
		if best == nil || policy.CreatedAt.After(best.CreatedAt) || policy.CreatedAt.Equal(best.CreatedAt) {
			best = policy
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	clone := *best
	return &clone, nil
}

func (r *policyRepo) List(_ context.Context) ([]domain.SLAPolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]domain.SLAPolicy, 0, len(r.store.policies))
	for _, policy := range r.store.policies {
		result = append(result, *policy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

type breachRepo struct {
	store *Store
}

// Breaches returns the SLA breach repository view.
func (s *Store) Breaches() repository.SLABreachRepository {
	return &breachRepo{store: s}
}

func (r *breachRepo) Create(_ context.Context, breach *domain.SLABreach) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.breachExistsLocked(breach.TicketID, breach.Type) {
		return false, nil
	}
	if breach.ID == "" {
		breach.ID = uuid.NewString()
	}
	if breach.BreachedAt.IsZero() {
		breach.BreachedAt = r.store.now()
	}
	clone := *breach
	r.store.breaches = append(r.store.breaches, &clone)
	return true, nil
}

func (r *breachRepo) Exists(_ context.Context, ticketID string, breachType domain.BreachType) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.breachExistsLocked(ticketID, breachType), nil
}

func (r *breachRepo) MarkNotified(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, breach := range r.store.breaches {
		if breach.ID == id {
			breach.Notified = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *breachRepo) List(_ context.Context, filter repository.BreachFilter) ([]domain.SLABreach, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.SLABreach
	for _, breach := range r.store.breaches {
		if filter.TicketID != nil && breach.TicketID != *filter.TicketID {
			continue
		}
		if filter.Type != nil && breach.Type != *filter.Type {
			continue
		}
		if filter.Notified != nil && breach.Notified != *filter.Notified {
			continue
		}
		result = append(result, *breach)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BreachedAt.After(result[j].BreachedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *breachRepo) Count(_ context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.breaches)), nil
}

func (s *Store) breachExistsLocked(ticketID string, breachType domain.BreachType) bool {
	for _, breach := range s.breaches {
		if breach.TicketID == ticketID && breach.Type == breachType {
			return true
		}
	}
	return false
}
