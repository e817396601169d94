package sla

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
)

func seedPolicy(t *testing.T, store *memory.Store, priority domain.TicketPriority, responseHours, resolutionHours int) *domain.SLAPolicy {
	t.Helper()
	policy := &domain.SLAPolicy{
		Name:                string(priority) + " policy",
		Priority:            priority,
		ResponseTimeHours:   responseHours,
		ResolutionTimeHours: resolutionHours,
		IsActive:            true,
	}
	if err := store.Policies().Create(context.Background(), policy); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
	return policy
}

func TestResolverStampsDeadlines(t *testing.T) {
	store := memory.NewStore()
	policy := seedPolicy(t, store, domain.TicketPriorityUrgent, 1, 4)
	resolver := NewResolver(store.Policies(), store.Tickets(), zap.NewNop())

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{
		ID:        "t-1",
		Priority:  domain.TicketPriorityUrgent,
		Status:    domain.TicketStatusOpen,
		CreatedAt: created,
	}
	if err := resolver.Apply(context.Background(), ticket); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if ticket.SLAPolicyID == nil || *ticket.SLAPolicyID != policy.ID {
		t.Fatal("ticket must reference the selected policy")
	}
	if ticket.SLAResponseDeadline == nil || !ticket.SLAResponseDeadline.Equal(created.Add(time.Hour)) {
		t.Fatalf("response deadline must be creation + 1h, got %v", ticket.SLAResponseDeadline)
	}
	if ticket.SLAResolutionDeadline == nil || !ticket.SLAResolutionDeadline.Equal(created.Add(4*time.Hour)) {
		t.Fatalf("resolution deadline must be creation + 4h, got %v", ticket.SLAResolutionDeadline)
	}
}

func TestResolverNoPolicyLeavesTicketUntouched(t *testing.T) {
	store := memory.NewStore()
	seedPolicy(t, store, domain.TicketPriorityUrgent, 1, 4)
	resolver := NewResolver(store.Policies(), store.Tickets(), zap.NewNop())

	ticket := &domain.Ticket{ID: "t-1", Priority: domain.TicketPriorityLow, CreatedAt: time.Now()}
	if err := resolver.Apply(context.Background(), ticket); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if ticket.SLAPolicyID != nil || ticket.SLAResponseDeadline != nil {
		t.Fatal("a priority without an active policy must leave the ticket untouched")
	}
}

func TestResolverPrefersNewestPolicy(t *testing.T) {
	store := memory.NewStore()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return older })
	seedPolicy(t, store, domain.TicketPriorityHigh, 8, 48)
	store.SetClock(time.Now)
	newest := seedPolicy(t, store, domain.TicketPriorityHigh, 2, 24)

	resolver := NewResolver(store.Policies(), store.Tickets(), zap.NewNop())
	ticket := &domain.Ticket{ID: "t-1", Priority: domain.TicketPriorityHigh, CreatedAt: time.Now()}
	if err := resolver.Apply(context.Background(), ticket); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if ticket.SLAPolicyID == nil || *ticket.SLAPolicyID != newest.ID {
		t.Fatal("the most recently created active policy must win")
	}
}

func TestResolverBackfillsMissingPolicies(t *testing.T) {
	store := memory.NewStore()
	resolver := NewResolver(store.Policies(), store.Tickets(), zap.NewNop())

	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	orphan := &domain.Ticket{
		ID:        "orphan",
		Priority:  domain.TicketPriorityMedium,
		Status:    domain.TicketStatusOpen,
		CreatedAt: created,
	}
	closed := &domain.Ticket{
		ID:        "closed",
		Priority:  domain.TicketPriorityMedium,
		Status:    domain.TicketStatusClosed,
		CreatedAt: created,
	}
	for _, ticket := range []*domain.Ticket{orphan, closed} {
		if err := store.Tickets().Create(context.Background(), ticket); err != nil {
			t.Fatalf("seed ticket: %v", err)
		}
	}

	seedPolicy(t, store, domain.TicketPriorityMedium, 4, 24)

	repaired, err := resolver.ApplyMissing(context.Background(), 100)
	if err != nil {
		t.Fatalf("apply missing: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("only the open orphan qualifies, repaired %d", repaired)
	}

	stored, err := store.Tickets().GetByID(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.SLAPolicyID == nil {
		t.Fatal("backfilled ticket must carry a policy")
	}
	if stored.SLAResponseDeadline == nil || !stored.SLAResponseDeadline.Equal(created.Add(4*time.Hour)) {
		t.Fatal("backfilled deadlines must derive from the original creation time")
	}
}

// interleavedPolicies mutates the ticket during policy resolution, so
// the backfill's listing snapshot is stale by the time it persists.
type interleavedPolicies struct {
	repository.SLAPolicyRepository
	tickets  repository.TicketRepository
	ticketID string
	mutate   func(ticket *domain.Ticket)
}

func (r *interleavedPolicies) GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	ticket, err := r.tickets.GetByID(ctx, r.ticketID)
	if err == nil {
		r.mutate(ticket)
		_ = r.tickets.Update(ctx, ticket)
	}
	return r.SLAPolicyRepository.GetActiveByPriority(ctx, priority)
}

func TestResolverBackfillPreservesConcurrentReply(t *testing.T) {
	store := memory.NewStore()
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	orphan := &domain.Ticket{
		ID:        "orphan",
		Priority:  domain.TicketPriorityMedium,
		Status:    domain.TicketStatusOpen,
		CreatedAt: created,
	}
	if err := store.Tickets().Create(context.Background(), orphan); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	seedPolicy(t, store, domain.TicketPriorityMedium, 4, 24)

	policies := &interleavedPolicies{
		SLAPolicyRepository: store.Policies(),
		tickets:             store.Tickets(),
		ticketID:            "orphan",
		mutate: func(ticket *domain.Ticket) {
			replied := time.Now().UTC()
			ticket.FirstResponseAt = &replied
			ticket.Status = domain.TicketStatusInProgress
		},
	}
	resolver := NewResolver(policies, store.Tickets(), zap.NewNop())

	repaired, err := resolver.ApplyMissing(context.Background(), 100)
	if err != nil {
		t.Fatalf("apply missing: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("the orphan must still be repaired, got %d", repaired)
	}

	stored, err := store.Tickets().GetByID(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.FirstResponseAt == nil || stored.Status != domain.TicketStatusInProgress {
		t.Fatal("changes landing mid-backfill must survive the policy write")
	}
	if stored.SLAPolicyID == nil || stored.SLAResponseDeadline == nil {
		t.Fatal("the policy and deadlines must still be attached")
	}
}

func TestResolverBackfillYieldsToConcurrentAttach(t *testing.T) {
	store := memory.NewStore()
	orphan := &domain.Ticket{
		ID:        "orphan",
		Priority:  domain.TicketPriorityMedium,
		Status:    domain.TicketStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Tickets().Create(context.Background(), orphan); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	seedPolicy(t, store, domain.TicketPriorityMedium, 4, 24)

	winner := "policy-from-elsewhere"
	policies := &interleavedPolicies{
		SLAPolicyRepository: store.Policies(),
		tickets:             store.Tickets(),
		ticketID:            "orphan",
		mutate: func(ticket *domain.Ticket) {
			ticket.SLAPolicyID = &winner
		},
	}
	resolver := NewResolver(policies, store.Tickets(), zap.NewNop())

	repaired, err := resolver.ApplyMissing(context.Background(), 100)
	if err != nil {
		t.Fatalf("apply missing: %v", err)
	}
	if repaired != 0 {
		t.Fatalf("a concurrently attached policy must not be counted as repaired, got %d", repaired)
	}

	stored, err := store.Tickets().GetByID(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.SLAPolicyID == nil || *stored.SLAPolicyID != winner {
		t.Fatal("the policy attached mid-backfill must win")
	}
}
