package automation

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
)

type recordingMutator struct {
	failPriority bool
	notes        []string
}

func (m *recordingMutator) ApplyAssignment(_ context.Context, ticket *domain.Ticket, agent *domain.User) error {
	id := agent.ID
	ticket.AssignedAgentID = &id
	ticket.Status = domain.TicketStatusAssigned
	return nil
}

func (m *recordingMutator) ApplyPriority(_ context.Context, ticket *domain.Ticket, priority domain.TicketPriority) error {
	if m.failPriority {
		return errors.New("priority store unavailable")
	}
	ticket.Priority = priority
	return nil
}

func (m *recordingMutator) ApplyStatus(_ context.Context, ticket *domain.Ticket, status domain.TicketStatus) error {
	ticket.Status = status
	return nil
}

func (m *recordingMutator) ApplyTag(_ context.Context, ticket *domain.Ticket, tag *domain.Tag) error {
	ticket.Tags = append(ticket.Tags, tag.Name)
	return nil
}

func (m *recordingMutator) ApplyEscalation(_ context.Context, ticket *domain.Ticket) error {
	ticket.IsEscalated = true
	if ticket.EscalationLevel < domain.MaxEscalationLevel {
		ticket.EscalationLevel++
	}
	return nil
}

func (m *recordingMutator) ApplyInternalNote(_ context.Context, _ *domain.Ticket, message string) error {
	m.notes = append(m.notes, message)
	return nil
}

type recordingSink struct {
	err  error
	sent []string
}

func (s *recordingSink) Notify(_ context.Context, userID, _, _ string, _ domain.NotificationCategory, _ *string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, userID)
	return nil
}

type engineFixture struct {
	store   *memory.Store
	engine  *Engine
	mutator *recordingMutator
	sink    *recordingSink
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := memory.NewStore()
	mutator := &recordingMutator{}
	sink := &recordingSink{}
	actions := NewActionSet(mutator, store.Users(), store.Tags(), sink, zap.NewNop())
	engine := NewEngine(EngineDependencies{
		Rules:   store.Rules(),
		Logs:    store.ExecutionLogs(),
		Actions: actions,
		Metrics: observability.NewMetrics(),
		Logger:  zap.NewNop(),
	})
	return &engineFixture{store: store, engine: engine, mutator: mutator, sink: sink}
}

func (f *engineFixture) addRule(t *testing.T, rule *domain.AutomationRule) *domain.AutomationRule {
	t.Helper()
	rule.IsActive = true
	if err := f.store.Rules().Create(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return rule
}

func (f *engineFixture) logs(t *testing.T, ticketID string) []domain.RuleExecutionLog {
	t.Helper()
	entries, err := f.store.ExecutionLogs().List(context.Background(), repository.ExecutionLogFilter{TicketID: &ticketID})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return entries
}

func openTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:         "t-1",
		TicketKey:  "TCK-0001",
		Title:      "Printer on fire",
		Status:     domain.TicketStatusOpen,
		Priority:   domain.TicketPriorityMedium,
		Source:     domain.TicketSourceWeb,
		CustomerID: "u-customer",
	}
}

func TestEngineRunsRulesInPriorityOrder(t *testing.T) {
	f := newEngineFixture(t)
	agent := f.store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true})

	f.addRule(t, &domain.AutomationRule{
		Name:          "urgent escalation",
		TriggerEvent:  domain.TriggerTicketCreated,
		ActionType:    domain.ActionChangePriority,
		ActionParams:  domain.ActionParams{"priority": "urgent"},
		PriorityOrder: 20,
	})
	f.addRule(t, &domain.AutomationRule{
		Name:          "route to triage",
		TriggerEvent:  domain.TriggerTicketCreated,
		ActionType:    domain.ActionAssignAgent,
		ActionParams:  domain.ActionParams{"agent_id": agent.ID},
		PriorityOrder: 10,
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketCreated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	if ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != agent.ID {
		t.Fatal("lower priority_order rule must run and assign the agent")
	}
	if ticket.Priority != domain.TicketPriorityUrgent {
		t.Fatal("second rule must still run when the first does not stop processing")
	}

	entries := f.logs(t, ticket.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Outcome != domain.OutcomeSuccess {
			t.Fatalf("expected success outcomes, got %s (%s)", entry.Outcome, entry.ErrorMessage)
		}
	}
}

func TestEngineStopProcessingHalts(t *testing.T) {
	f := newEngineFixture(t)
	agent := f.store.AddUser(&domain.User{FullName: "Avery Quinn", Role: domain.RoleAgent, IsActive: true})

	f.addRule(t, &domain.AutomationRule{
		Name:           "assign and stop",
		TriggerEvent:   domain.TriggerTicketCreated,
		ActionType:     domain.ActionAssignAgent,
		ActionParams:   domain.ActionParams{"agent_id": agent.ID},
		PriorityOrder:  1,
		StopProcessing: true,
	})
	f.addRule(t, &domain.AutomationRule{
		Name:          "never reached",
		TriggerEvent:  domain.TriggerTicketCreated,
		ActionType:    domain.ActionChangePriority,
		ActionParams:  domain.ActionParams{"priority": "urgent"},
		PriorityOrder: 2,
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketCreated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatal("rules after a stop_processing match must not run")
	}
	if entries := f.logs(t, ticket.ID); len(entries) != 1 {
		t.Fatalf("expected exactly 1 log entry, got %d", len(entries))
	}
}

func TestEngineStopProcessingHaltsEvenOnFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.mutator.failPriority = true

	f.addRule(t, &domain.AutomationRule{
		Name:           "failing stopper",
		TriggerEvent:   domain.TriggerTicketUpdated,
		ActionType:     domain.ActionChangePriority,
		ActionParams:   domain.ActionParams{"priority": "urgent"},
		PriorityOrder:  1,
		StopProcessing: true,
	})
	f.addRule(t, &domain.AutomationRule{
		Name:          "shadowed",
		TriggerEvent:  domain.TriggerTicketUpdated,
		ActionType:    domain.ActionEscalate,
		PriorityOrder: 2,
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketUpdated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	if ticket.IsEscalated {
		t.Fatal("stop_processing must halt the pass even when the action failed")
	}
	entries := f.logs(t, ticket.ID)
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeFailed {
		t.Fatalf("expected a single failed entry, got %+v", entries)
	}
	if entries[0].ErrorMessage == "" {
		t.Fatal("failed entry must carry the error message")
	}
}

func TestEngineUnmatchedRuleLeavesNoLog(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "urgent only",
		TriggerEvent: domain.TriggerTicketCreated,
		Conditions:   []domain.Condition{{Field: "priority", Value: "urgent"}},
		ActionType:   domain.ActionEscalate,
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketCreated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}
	if entries := f.logs(t, ticket.ID); len(entries) != 0 {
		t.Fatalf("unmatched rules must not be logged, got %d entries", len(entries))
	}
}

func TestEngineIneligibleAgentFailsWithoutMutation(t *testing.T) {
	f := newEngineFixture(t)
	customer := f.store.AddUser(&domain.User{FullName: "Casey Lee", Role: domain.RoleCustomer, IsActive: true})

	f.addRule(t, &domain.AutomationRule{
		Name:          "bad assignment",
		TriggerEvent:  domain.TriggerTicketCreated,
		ActionType:    domain.ActionAssignAgent,
		ActionParams:  domain.ActionParams{"agent_id": customer.ID},
		PriorityOrder: 1,
	})
	f.addRule(t, &domain.AutomationRule{
		Name:          "sibling still runs",
		TriggerEvent:  domain.TriggerTicketCreated,
		ActionType:    domain.ActionAddTag,
		ActionParams:  domain.ActionParams{"tag": "needs-triage"},
		PriorityOrder: 2,
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketCreated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	if ticket.AssignedAgentID != nil {
		t.Fatal("assignment to an ineligible account must leave the ticket unassigned")
	}
	if len(ticket.Tags) != 1 || ticket.Tags[0] != "needs-triage" {
		t.Fatalf("sibling rule must still run, tags: %v", ticket.Tags)
	}

	entries := f.logs(t, ticket.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Outcome != domain.OutcomeFailed && entries[1].Outcome != domain.OutcomeFailed {
		t.Fatal("the failed assignment must be recorded")
	}
}

func TestEngineNotificationWithoutRecipientIsSkipped(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "nudge agent",
		TriggerEvent: domain.TriggerTicketIdle,
		ActionType:   domain.ActionSendNotification,
		ActionParams: domain.ActionParams{"recipients": "agent"},
	})

	ticket := openTicket() // unassigned
	if err := f.engine.Run(context.Background(), domain.TriggerTicketIdle, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries := f.logs(t, ticket.ID)
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeSkipped {
		t.Fatalf("expected one skipped entry, got %+v", entries)
	}
	if len(f.sink.sent) != 0 {
		t.Fatal("no notification may be delivered without a recipient")
	}
}

func TestEngineNotifiesCustomer(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "customer heads-up",
		TriggerEvent: domain.TriggerTicketUpdated,
		ActionType:   domain.ActionSendNotification,
		ActionParams: domain.ActionParams{"recipients": "customer", "message": "We are on it"},
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketUpdated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(f.sink.sent) != 1 || f.sink.sent[0] != ticket.CustomerID {
		t.Fatalf("expected one notification to the customer, got %v", f.sink.sent)
	}
}

func TestEngineUnknownActionTypeFails(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "misconfigured",
		TriggerEvent: domain.TriggerTicketCreated,
		ActionType:   domain.ActionType("launch_rocket"),
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerTicketCreated, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries := f.logs(t, ticket.ID)
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeFailed {
		t.Fatalf("unknown action type must record a failure, got %+v", entries)
	}
}

func TestEngineAddCommentDefaultsMessage(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "leave note",
		TriggerEvent: domain.TriggerSLABreach,
		ActionType:   domain.ActionAddComment,
	})

	ticket := openTicket()
	if err := f.engine.Run(context.Background(), domain.TriggerSLABreach, ticket); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.mutator.notes) != 1 || f.mutator.notes[0] != "Automated internal note" {
		t.Fatalf("expected default note message, got %v", f.mutator.notes)
	}
}

func TestEngineRunBatchWithoutRules(t *testing.T) {
	f := newEngineFixture(t)
	processed, err := f.engine.RunBatch(context.Background(), domain.TriggerTicketIdle, []domain.Ticket{*openTicket()})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if processed != 0 {
		t.Fatalf("batch without active rules must process nothing, got %d", processed)
	}
}
