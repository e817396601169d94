package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ParseTicketStatus validates a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch TicketStatus(raw) {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return TicketStatus(raw), true
	}
	return "", false
}

// IsTerminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// ParseTicketPriority validates a raw priority value.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	switch TicketPriority(raw) {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return TicketPriority(raw), true
	}
	return "", false
}

// TicketSource records the intake channel.
type TicketSource string

const (
	TicketSourceWeb   TicketSource = "web"
	TicketSourceEmail TicketSource = "email"
	TicketSourceAPI   TicketSource = "api"
	TicketSourcePhone TicketSource = "phone"
)

// MaxEscalationLevel caps repeated escalations.
const MaxEscalationLevel = 3

// Category groups tickets for routing and reporting.
type Category struct {
	ID        string
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
}

// Tag is a free-form label attached to tickets.
type Tag struct {
	ID   string
	Name string
	Slug string
}

// Ticket is the mutable aggregate for support requests. All field
// mutations funnel through the ticket service so the activity trail and
// trigger dispatch stay consistent.
type Ticket struct {
	ID          string
	TicketKey   string
	Title       string
	Description string

	CategoryID *string
	// Category is the loaded association; nil when the ticket has no
	// category or the caller did not hydrate it.
	Category *Category

	Priority TicketPriority
	Status   TicketStatus
	Source   TicketSource
	Tags     []string

	CustomerID      string
	AssignedAgentID *string

	SLAPolicyID           *string
	SLAResponseDeadline   *time.Time
	SLAResolutionDeadline *time.Time
	SLAResponseMet        *bool
	SLAResolutionMet      *bool
	FirstResponseAt       *time.Time
	ResolvedAt            *time.Time

	IsEscalated     bool
	EscalationLevel int

	CreatedAt time.Time
	UpdatedAt time.Time
}
