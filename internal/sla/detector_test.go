package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
)

type stubNotifier struct {
	err  error
	sent []string
}

func (s *stubNotifier) Notify(_ context.Context, userID, _, _ string, _ domain.NotificationCategory, _ *string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, userID)
	return nil
}

type stubTrigger struct {
	events []domain.TriggerEvent
}

func (s *stubTrigger) Run(_ context.Context, trigger domain.TriggerEvent, _ *domain.Ticket) error {
	s.events = append(s.events, trigger)
	return nil
}

func newDetector(store *memory.Store, notifier *stubNotifier, trigger *stubTrigger) *Detector {
	return NewDetector(DetectorDependencies{
		Tickets:  store.Tickets(),
		Breaches: store.Breaches(),
		Users:    store.Users(),
		Notifier: notifier,
		Trigger:  trigger,
		Metrics:  observability.NewMetrics(),
		Logger:   zap.NewNop(),
		Batch:    100,
	})
}

func seedOverdueTicket(t *testing.T, store *memory.Store, id string, agentID *string) *domain.Ticket {
	t.Helper()
	policyID := "p-1"
	response := time.Now().UTC().Add(-2 * time.Hour)
	resolution := time.Now().UTC().Add(time.Hour)
	ticket := &domain.Ticket{
		ID:                    id,
		TicketKey:             "TCK-" + id,
		Status:                domain.TicketStatusOpen,
		Priority:              domain.TicketPriorityUrgent,
		CustomerID:            "u-customer",
		AssignedAgentID:       agentID,
		SLAPolicyID:           &policyID,
		SLAResponseDeadline:   &response,
		SLAResolutionDeadline: &resolution,
	}
	if err := store.Tickets().Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func TestDetectorRecordsBreachOnce(t *testing.T) {
	store := memory.NewStore()
	agent := store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true})
	seedOverdueTicket(t, store, "t-1", &agent.ID)

	notifier := &stubNotifier{}
	trigger := &stubTrigger{}
	detector := newDetector(store, notifier, trigger)

	created, err := detector.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected exactly one breach, got %d", created)
	}

	// second pass over the same state must be a no-op
	created, err = detector.Check(context.Background())
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if created != 0 {
		t.Fatalf("a repeated pass must record nothing, got %d", created)
	}

	breaches, err := store.Breaches().List(context.Background(), repository.BreachFilter{})
	if err != nil {
		t.Fatalf("list breaches: %v", err)
	}
	if len(breaches) != 1 {
		t.Fatalf("expected one stored breach, got %d", len(breaches))
	}
	breach := breaches[0]
	if breach.Type != domain.BreachResponse {
		t.Fatalf("expected a response breach, got %s", breach.Type)
	}
	if !breach.Notified {
		t.Fatal("breach must be marked notified after successful delivery")
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != agent.ID {
		t.Fatalf("assigned agent must be notified, got %v", notifier.sent)
	}
	if len(trigger.events) != 1 || trigger.events[0] != domain.TriggerSLABreach {
		t.Fatalf("breach trigger must fire once, got %v", trigger.events)
	}

	stored, err := store.Tickets().GetByID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.SLAResponseMet == nil || *stored.SLAResponseMet {
		t.Fatal("response met flag must flip to false on breach")
	}
}

func TestDetectorNotifiesManagersWhenUnassigned(t *testing.T) {
	store := memory.NewStore()
	manager := store.AddUser(&domain.User{FullName: "Morgan Park", Role: domain.RoleManager, IsActive: true})
	store.AddUser(&domain.User{FullName: "Casey Lee", Role: domain.RoleCustomer, IsActive: true})
	seedOverdueTicket(t, store, "t-1", nil)

	notifier := &stubNotifier{}
	detector := newDetector(store, notifier, &stubTrigger{})

	if _, err := detector.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != manager.ID {
		t.Fatalf("unassigned breach must alert managers, got %v", notifier.sent)
	}
}

func TestDetectorKeepsBreachWhenNotificationFails(t *testing.T) {
	store := memory.NewStore()
	agent := store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true})
	seedOverdueTicket(t, store, "t-1", &agent.ID)

	notifier := &stubNotifier{err: errors.New("redis down")}
	detector := newDetector(store, notifier, &stubTrigger{})

	created, err := detector.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if created != 1 {
		t.Fatalf("notification failure must not unwind the breach, got %d", created)
	}

	breaches, err := store.Breaches().List(context.Background(), repository.BreachFilter{})
	if err != nil {
		t.Fatalf("list breaches: %v", err)
	}
	if len(breaches) != 1 || breaches[0].Notified {
		t.Fatal("the breach must persist and stay unnotified")
	}
}

func TestDetectorIgnoresAnsweredAndTerminalTickets(t *testing.T) {
	store := memory.NewStore()

	answered := seedOverdueTicket(t, store, "answered", nil)
	firstResponse := time.Now().UTC().Add(-time.Hour)
	answered.FirstResponseAt = &firstResponse
	if err := store.Tickets().Update(context.Background(), answered); err != nil {
		t.Fatalf("update ticket: %v", err)
	}

	resolved := seedOverdueTicket(t, store, "resolved", nil)
	resolved.Status = domain.TicketStatusResolved
	if err := store.Tickets().Update(context.Background(), resolved); err != nil {
		t.Fatalf("update ticket: %v", err)
	}

	detector := newDetector(store, &stubNotifier{}, &stubTrigger{})
	created, err := detector.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if created != 0 {
		t.Fatalf("answered and terminal tickets are never candidates, got %d breaches", created)
	}
}

// interleavedBreaches lets a staff reply land between the detector's
// candidate snapshot and its write, by mutating the ticket during the
// existence check.
type interleavedBreaches struct {
	repository.SLABreachRepository
	tickets repository.TicketRepository
	fired   bool
}

func (r *interleavedBreaches) Exists(ctx context.Context, ticketID string, breachType domain.BreachType) (bool, error) {
	if !r.fired {
		r.fired = true
		ticket, err := r.tickets.GetByID(ctx, ticketID)
		if err == nil {
			replied := time.Now().UTC()
			ticket.FirstResponseAt = &replied
			ticket.Status = domain.TicketStatusInProgress
			_ = r.tickets.Update(ctx, ticket)
		}
	}
	return r.SLABreachRepository.Exists(ctx, ticketID, breachType)
}

func TestDetectorWritePreservesConcurrentReply(t *testing.T) {
	store := memory.NewStore()
	agent := store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true})
	seedOverdueTicket(t, store, "t-1", &agent.ID)

	detector := NewDetector(DetectorDependencies{
		Tickets:  store.Tickets(),
		Breaches: &interleavedBreaches{SLABreachRepository: store.Breaches(), tickets: store.Tickets()},
		Users:    store.Users(),
		Notifier: &stubNotifier{},
		Trigger:  &stubTrigger{},
		Metrics:  observability.NewMetrics(),
		Logger:   zap.NewNop(),
		Batch:    100,
	})

	created, err := detector.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if created != 1 {
		t.Fatalf("the snapshot qualified before the reply, expected one breach, got %d", created)
	}

	stored, err := store.Tickets().GetByID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.FirstResponseAt == nil {
		t.Fatal("a first response landing mid-pass must survive the detector's write")
	}
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("a status change landing mid-pass must survive, got %s", stored.Status)
	}
	if stored.SLAResponseMet == nil || *stored.SLAResponseMet {
		t.Fatal("the late reply does not undo the breach; the met flag still flips to false")
	}
}

func TestDetectorRecordsResolutionBreach(t *testing.T) {
	store := memory.NewStore()
	agent := store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true})

	ticket := seedOverdueTicket(t, store, "t-1", &agent.ID)
	firstResponse := time.Now().UTC().Add(-3 * time.Hour)
	overdueResolution := time.Now().UTC().Add(-time.Minute)
	ticket.FirstResponseAt = &firstResponse // response handled in time
	ticket.SLAResolutionDeadline = &overdueResolution
	if err := store.Tickets().Update(context.Background(), ticket); err != nil {
		t.Fatalf("update ticket: %v", err)
	}

	detector := newDetector(store, &stubNotifier{}, &stubTrigger{})
	created, err := detector.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected one resolution breach, got %d", created)
	}

	breachType := domain.BreachResolution
	breaches, err := store.Breaches().List(context.Background(), repository.BreachFilter{Type: &breachType})
	if err != nil {
		t.Fatalf("list breaches: %v", err)
	}
	if len(breaches) != 1 {
		t.Fatalf("expected a stored resolution breach, got %d", len(breaches))
	}

	stored, err := store.Tickets().GetByID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.SLAResolutionMet == nil || *stored.SLAResolutionMet {
		t.Fatal("resolution met flag must flip to false")
	}
}
