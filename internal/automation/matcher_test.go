package automation

import (
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

func matcherTicket() *domain.Ticket {
	categoryID := "cat-1"
	return &domain.Ticket{
		ID:         "t-1",
		TicketKey:  "TCK-0001",
		Title:      "Refund request",
		Status:     domain.TicketStatusOpen,
		Priority:   domain.TicketPriorityHigh,
		Source:     domain.TicketSourceEmail,
		CustomerID: "u-customer",
		CategoryID: &categoryID,
		Category:   &domain.Category{ID: categoryID, Name: "Billing", Slug: "billing"},
	}
}

func TestMatchEmptyConditions(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	if !m.Match(nil, matcherTicket()) {
		t.Fatal("empty condition set must match every ticket")
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	conditions := []domain.Condition{
		{Field: "priority", Value: "HIGH"},
		{Field: "category.name", Value: "billing"},
	}
	if !m.Match(conditions, matcherTicket()) {
		t.Fatal("string comparison must ignore case")
	}
}

func TestMatchReferenceFieldsUseIDs(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	ticket := matcherTicket()
	agentID := "u-agent"
	ticket.AssignedAgentID = &agentID

	if !m.Match([]domain.Condition{{Field: "customer", Value: "u-customer"}}, ticket) {
		t.Fatal("customer condition must compare against the customer ID")
	}
	if !m.Match([]domain.Condition{{Field: "assigned_agent", Value: "u-agent"}}, ticket) {
		t.Fatal("assigned_agent condition must compare against the agent ID")
	}
	if !m.Match([]domain.Condition{{Field: "category", Value: "cat-1"}}, ticket) {
		t.Fatal("category condition must compare against the category ID")
	}
}

func TestMatchNullValue(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	ticket := matcherTicket()
	ticket.CategoryID = nil
	ticket.Category = nil

	if m.Match([]domain.Condition{{Field: "category.name", Value: "Billing"}}, ticket) {
		t.Fatal("null field must not match a concrete expected value")
	}
	if m.Match([]domain.Condition{{Field: "assigned_agent", Value: "u-agent"}}, ticket) {
		t.Fatal("unassigned ticket must not match an agent condition")
	}
}

func TestMatchUnknownField(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	conditions := []domain.Condition{{Field: "reporter.email", Value: "a@b.c"}}
	if m.Match(conditions, matcherTicket()) {
		t.Fatal("unknown field path must evaluate to no-match")
	}
}

func TestMatchScalarFormatting(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	ticket := matcherTicket()
	ticket.IsEscalated = true
	ticket.EscalationLevel = 2

	conditions := []domain.Condition{
		{Field: "is_escalated", Value: "true"},
		{Field: "escalation_level", Value: "2"},
	}
	if !m.Match(conditions, ticket) {
		t.Fatal("boolean and integer fields must compare through their canonical string forms")
	}
}

func TestMatchFirstMismatchWins(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	conditions := []domain.Condition{
		{Field: "status", Value: "closed"},
		{Field: "priority", Value: "high"},
	}
	if m.Match(conditions, matcherTicket()) {
		t.Fatal("any failing condition must fail the whole set")
	}
}
