package domain

import "time"

// ActivityType enumerates audit-trail entry kinds.
type ActivityType string

const (
	ActivityCreated         ActivityType = "created"
	ActivityStatusChanged   ActivityType = "status_changed"
	ActivityPriorityChanged ActivityType = "priority_changed"
	ActivityAssigned        ActivityType = "assigned"
	ActivityReassigned      ActivityType = "reassigned"
	ActivityCommented       ActivityType = "commented"
	ActivityNoteAdded       ActivityType = "note_added"
	ActivityEscalated       ActivityType = "escalated"
	ActivitySLABreached     ActivityType = "sla_breached"
	ActivityReopened        ActivityType = "reopened"
	ActivityTagAdded        ActivityType = "tag_added"
	ActivityCategoryChanged ActivityType = "category_changed"
)

// TicketActivity is one append-only audit trail entry. Every ticket
// mutation, including automation-driven ones, appends exactly one entry
// per logically distinct change.
type TicketActivity struct {
	ID          string
	TicketID    string
	Type        ActivityType
	ActorID     *string
	OldValue    string
	NewValue    string
	Description string
	CreatedAt   time.Time
}
