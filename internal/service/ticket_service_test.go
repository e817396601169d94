package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/sla"
)

type triggerRecorder struct {
	events []domain.TriggerEvent
}

func (r *triggerRecorder) Run(_ context.Context, trigger domain.TriggerEvent, _ *domain.Ticket) error {
	r.events = append(r.events, trigger)
	return nil
}

type notifyRecorder struct {
	sent []domain.NotificationCategory
}

func (r *notifyRecorder) Notify(_ context.Context, _, _, _ string, category domain.NotificationCategory, _ *string) error {
	r.sent = append(r.sent, category)
	return nil
}

type serviceFixture struct {
	store    *memory.Store
	service  *TicketService
	trigger  *triggerRecorder
	notifier *notifyRecorder
	customer *domain.User
	agent    *domain.User
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := memory.NewStore()
	trigger := &triggerRecorder{}
	notifier := &notifyRecorder{}
	logger := zap.NewNop()

	svc := NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets(),
		CommentRepo:  store.Comments(),
		ActivityRepo: store.Activities(),
		UserRepo:     store.Users(),
		CategoryRepo: store.Categories(),
		Resolver:     sla.NewResolver(store.Policies(), store.Tickets(), logger),
		Notifier:     notifier,
		Logger:       logger,
	})
	svc.SetAutomation(trigger)

	return &serviceFixture{
		store:    store,
		service:  svc,
		trigger:  trigger,
		notifier: notifier,
		customer: store.AddUser(&domain.User{FullName: "Casey Lee", Role: domain.RoleCustomer, IsActive: true}),
		agent:    store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true}),
	}
}

func (f *serviceFixture) seedPolicy(t *testing.T, priority domain.TicketPriority, responseHours, resolutionHours int) {
	t.Helper()
	policy := &domain.SLAPolicy{
		Name:                string(priority) + " policy",
		Priority:            priority,
		ResponseTimeHours:   responseHours,
		ResolutionTimeHours: resolutionHours,
		IsActive:            true,
	}
	if err := f.store.Policies().Create(context.Background(), policy); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
}

func (f *serviceFixture) createTicket(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(context.Background(), TicketCreateInput{
		CustomerID:  f.customer.ID,
		Title:       "Cannot log in",
		Description: "Password reset loop",
		Priority:    priority,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (f *serviceFixture) activities(t *testing.T, ticketID string) []domain.TicketActivity {
	t.Helper()
	entries, err := f.store.Activities().ListByTicket(context.Background(), ticketID, 100, 0)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	return entries
}

func hasActivity(entries []domain.TicketActivity, activityType domain.ActivityType) bool {
	for _, entry := range entries {
		if entry.Type == activityType {
			return true
		}
	}
	return false
}

func TestCreateTicketStampsSLAAndFiresTrigger(t *testing.T) {
	f := newServiceFixture(t)
	f.seedPolicy(t, domain.TicketPriorityUrgent, 1, 4)

	ticket := f.createTicket(t, domain.TicketPriorityUrgent)

	if !strings.HasPrefix(ticket.TicketKey, "TCK-") {
		t.Fatalf("unexpected ticket key %q", ticket.TicketKey)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("new tickets open, got %s", ticket.Status)
	}
	if ticket.SLAPolicyID == nil {
		t.Fatal("a matching active policy must attach at creation")
	}
	if ticket.SLAResponseDeadline == nil || !ticket.SLAResponseDeadline.Equal(ticket.CreatedAt.Add(time.Hour)) {
		t.Fatalf("response deadline must be creation + 1h, got %v", ticket.SLAResponseDeadline)
	}
	if len(f.trigger.events) != 1 || f.trigger.events[0] != domain.TriggerTicketCreated {
		t.Fatalf("expected one ticket_created dispatch, got %v", f.trigger.events)
	}
	if !hasActivity(f.activities(t, ticket.ID), domain.ActivityCreated) {
		t.Fatal("creation must be recorded in the activity trail")
	}
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, "")
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("priority must default to medium, got %s", ticket.Priority)
	}
	if ticket.Source != domain.TicketSourceWeb {
		t.Fatalf("source must default to web, got %s", ticket.Source)
	}
	if ticket.SLAPolicyID != nil {
		t.Fatal("without a policy the SLA fields stay empty")
	}
}

func TestUpdateTicketRejectsInvalidTransition(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	closed := domain.TicketStatusClosed
	if _, err := f.service.UpdateTicket(context.Background(), ticket.ID, &f.agent.ID, TicketUpdateInput{Status: &closed}); err != nil {
		t.Fatalf("open -> closed is allowed: %v", err)
	}

	inProgress := domain.TicketStatusInProgress
	if _, err := f.service.UpdateTicket(context.Background(), ticket.ID, &f.agent.ID, TicketUpdateInput{Status: &inProgress}); err == nil {
		t.Fatal("closed -> in_progress must be rejected")
	}
}

func TestResolveSettlesResolutionSLA(t *testing.T) {
	f := newServiceFixture(t)
	f.seedPolicy(t, domain.TicketPriorityHigh, 2, 24)
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	resolved := domain.TicketStatusResolved
	updated, err := f.service.UpdateTicket(context.Background(), ticket.ID, &f.agent.ID, TicketUpdateInput{Status: &resolved})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if updated.ResolvedAt == nil {
		t.Fatal("resolving must stamp resolved_at")
	}
	if updated.SLAResolutionMet == nil || !*updated.SLAResolutionMet {
		t.Fatal("resolving inside the window must settle the resolution SLA as met")
	}
}

func TestPriorityChangeKeepsDeadlines(t *testing.T) {
	f := newServiceFixture(t)
	f.seedPolicy(t, domain.TicketPriorityLow, 24, 72)
	f.seedPolicy(t, domain.TicketPriorityUrgent, 1, 4)
	ticket := f.createTicket(t, domain.TicketPriorityLow)

	originalResponse := *ticket.SLAResponseDeadline
	originalResolution := *ticket.SLAResolutionDeadline

	urgent := domain.TicketPriorityUrgent
	updated, err := f.service.UpdateTicket(context.Background(), ticket.ID, &f.agent.ID, TicketUpdateInput{Priority: &urgent})
	if err != nil {
		t.Fatalf("update priority: %v", err)
	}

	if !updated.SLAResponseDeadline.Equal(originalResponse) || !updated.SLAResolutionDeadline.Equal(originalResolution) {
		t.Fatal("deadlines are stamped once at creation and never recomputed")
	}
	if !hasActivity(f.activities(t, ticket.ID), domain.ActivityPriorityChanged) {
		t.Fatal("priority change must be recorded")
	}
}

func TestAssignmentMovesOpenToAssigned(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)
	f.trigger.events = nil

	updated, err := f.service.UpdateTicket(context.Background(), ticket.ID, nil, TicketUpdateInput{AssignedAgentID: &f.agent.ID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.AssignedAgentID == nil || *updated.AssignedAgentID != f.agent.ID {
		t.Fatal("agent must be assigned")
	}
	if updated.Status != domain.TicketStatusAssigned {
		t.Fatalf("open tickets move to assigned on assignment, got %s", updated.Status)
	}
	if len(f.trigger.events) != 1 || f.trigger.events[0] != domain.TriggerTicketAssigned {
		t.Fatalf("assignment must dispatch ticket_assigned, got %v", f.trigger.events)
	}
}

func TestAssignmentRejectsCustomers(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	if _, err := f.service.UpdateTicket(context.Background(), ticket.ID, nil, TicketUpdateInput{AssignedAgentID: &f.customer.ID}); err == nil {
		t.Fatal("customers can never own assignments")
	}
}

func TestFirstStaffReplySettlesResponseSLAOnce(t *testing.T) {
	f := newServiceFixture(t)
	f.seedPolicy(t, domain.TicketPriorityHigh, 2, 24)
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	if _, err := f.service.AddComment(context.Background(), ticket.ID, &f.agent.ID, "Looking into it", domain.CommentReply); err != nil {
		t.Fatalf("first reply: %v", err)
	}

	stored, err := f.store.Tickets().GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.FirstResponseAt == nil {
		t.Fatal("first staff reply must stamp first_response_at")
	}
	if stored.SLAResponseMet == nil || !*stored.SLAResponseMet {
		t.Fatal("a reply inside the window must settle the response SLA as met")
	}

	first := *stored.FirstResponseAt
	time.Sleep(5 * time.Millisecond)
	if _, err := f.service.AddComment(context.Background(), ticket.ID, &f.agent.ID, "Update incoming", domain.CommentReply); err != nil {
		t.Fatalf("second reply: %v", err)
	}
	stored, _ = f.store.Tickets().GetByID(context.Background(), ticket.ID)
	if !stored.FirstResponseAt.Equal(first) {
		t.Fatal("first_response_at is stamped once and never moved")
	}
}

func TestCustomerReplyDoesNotStampFirstResponse(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	if _, err := f.service.AddComment(context.Background(), ticket.ID, &f.customer.ID, "Any update?", domain.CommentReply); err != nil {
		t.Fatalf("customer reply: %v", err)
	}
	stored, _ := f.store.Tickets().GetByID(context.Background(), ticket.ID)
	if stored.FirstResponseAt != nil {
		t.Fatal("customer replies never count as the first response")
	}
}

func TestInternalNoteRequiresStaff(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	if _, err := f.service.AddComment(context.Background(), ticket.ID, &f.customer.ID, "sneaky", domain.CommentInternalNote); err == nil {
		t.Fatal("customers cannot post internal notes")
	}
	if _, err := f.service.AddComment(context.Background(), ticket.ID, &f.agent.ID, "internal context", domain.CommentInternalNote); err != nil {
		t.Fatalf("staff note: %v", err)
	}
	if !hasActivity(f.activities(t, ticket.ID), domain.ActivityNoteAdded) {
		t.Fatal("internal notes must appear in the activity trail")
	}
}

func TestEscalationCapsAtMaxLevel(t *testing.T) {
	f := newServiceFixture(t)
	f.store.AddUser(&domain.User{FullName: "Morgan Park", Role: domain.RoleManager, IsActive: true})
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	for i := 1; i <= domain.MaxEscalationLevel; i++ {
		updated, err := f.service.EscalateTicket(context.Background(), ticket.ID, &f.agent.ID, "still stuck")
		if err != nil {
			t.Fatalf("escalate step %d: %v", i, err)
		}
		if updated.EscalationLevel != i {
			t.Fatalf("expected level %d, got %d", i, updated.EscalationLevel)
		}
		if !updated.IsEscalated {
			t.Fatal("escalated flag must be set")
		}
	}

	if _, err := f.service.EscalateTicket(context.Background(), ticket.ID, &f.agent.ID, "again"); err == nil {
		t.Fatal("escalation past the cap must be rejected")
	}
}

func TestReopenClosedTicket(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	closed := domain.TicketStatusClosed
	if _, err := f.service.UpdateTicket(context.Background(), ticket.ID, &f.agent.ID, TicketUpdateInput{Status: &closed}); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := f.service.ReopenTicket(context.Background(), ticket.ID, &f.customer.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != domain.TicketStatusOpen {
		t.Fatalf("reopened tickets go back to open, got %s", reopened.Status)
	}
	if reopened.ResolvedAt != nil {
		t.Fatal("reopening clears resolved_at")
	}
	if !hasActivity(f.activities(t, ticket.ID), domain.ActivityReopened) {
		t.Fatal("reopen must be recorded distinctly")
	}

	if _, err := f.service.ReopenTicket(context.Background(), ticket.ID, &f.customer.ID); err == nil {
		t.Fatal("an open ticket cannot be reopened")
	}
}

func TestAutomationApplyPathDoesNotRedispatch(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityMedium)
	f.trigger.events = nil

	if err := f.service.ApplyPriority(context.Background(), ticket, domain.TicketPriorityUrgent); err != nil {
		t.Fatalf("apply priority: %v", err)
	}
	if err := f.service.ApplyStatus(context.Background(), ticket, domain.TicketStatusInProgress); err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if err := f.service.ApplyTag(context.Background(), ticket, &domain.Tag{ID: "tag-1", Name: "vip"}); err != nil {
		t.Fatalf("apply tag: %v", err)
	}

	if len(f.trigger.events) != 0 {
		t.Fatalf("automation mutations must not re-dispatch triggers, got %v", f.trigger.events)
	}

	stored, _ := f.store.Tickets().GetByID(context.Background(), ticket.ID)
	if stored.Priority != domain.TicketPriorityUrgent || stored.Status != domain.TicketStatusInProgress {
		t.Fatal("apply mutations must persist")
	}
	if len(stored.Tags) != 1 || stored.Tags[0] != "vip" {
		t.Fatalf("tag must persist, got %v", stored.Tags)
	}
}
