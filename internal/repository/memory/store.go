// Package memory provides in-memory implementations of the repository
// interfaces. cmd/api falls back to them when no POSTGRES_DSN is
// configured, and the package tests use them as fixtures.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Store owns all in-memory collections behind one mutex. Individual
// repositories are lightweight views over it.
type Store struct {
	mu sync.RWMutex

	tickets       map[string]*domain.Ticket
	rules         []*domain.AutomationRule
	logs          []*domain.RuleExecutionLog
	policies      []*domain.SLAPolicy
	breaches      []*domain.SLABreach
	activities    []*domain.TicketActivity
	comments      []*domain.TicketComment
	tags          map[string]*domain.Tag
	categories    map[string]*domain.Category
	users         map[string]*domain.User
	notifications []*domain.Notification

	now func() time.Time
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		tickets:    make(map[string]*domain.Ticket),
		tags:       make(map[string]*domain.Tag),
		categories: make(map[string]*domain.Category),
		users:      make(map[string]*domain.User),
		now:        time.Now,
	}
}

// SetClock overrides the store clock; tests use it to pin timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser seeds an account into the directory.
func (s *Store) AddUser(user *domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	clone := *user
	s.users[user.ID] = &clone
	return user
}

// AddCategory seeds a category.
func (s *Store) AddCategory(category *domain.Category) *domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = s.now()
	}
	clone := *category
	s.categories[category.ID] = &clone
	return category
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.Category != nil {
		category := *t.Category
		clone.Category = &category
	}
	clone.Tags = append([]string(nil), t.Tags...)
	clone.AssignedAgentID = cloneStringPtr(t.AssignedAgentID)
	clone.CategoryID = cloneStringPtr(t.CategoryID)
	clone.SLAPolicyID = cloneStringPtr(t.SLAPolicyID)
	clone.SLAResponseDeadline = cloneTimePtr(t.SLAResponseDeadline)
	clone.SLAResolutionDeadline = cloneTimePtr(t.SLAResolutionDeadline)
	clone.SLAResponseMet = cloneBoolPtr(t.SLAResponseMet)
	clone.SLAResolutionMet = cloneBoolPtr(t.SLAResolutionMet)
	clone.FirstResponseAt = cloneTimePtr(t.FirstResponseAt)
	clone.ResolvedAt = cloneTimePtr(t.ResolvedAt)
	return &clone
}

func cloneRule(r *domain.AutomationRule) *domain.AutomationRule {
	clone := *r
	clone.Conditions = append([]domain.Condition(nil), r.Conditions...)
	if r.ActionParams != nil {
		clone.ActionParams = make(domain.ActionParams, len(r.ActionParams))
		for k, v := range r.ActionParams {
			clone.ActionParams[k] = v
		}
	}
	clone.CreatedByID = cloneStringPtr(r.CreatedByID)
	return &clone
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneBoolPtr(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
