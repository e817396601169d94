package domain

import "time"

// SLAPolicy defines response/resolution time budgets per priority.
// Policies are selected once per ticket at creation time; editing a
// policy does not change deadlines already attached to tickets.
type SLAPolicy struct {
	ID          string
	Name        string
	Description string
	Priority    TicketPriority

	ResponseTimeHours   int
	ResolutionTimeHours int
	// EscalationTimeHours is the optional auto-escalation threshold;
	// zero disables it.
	EscalationTimeHours int

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResponseBudget returns the response window as a duration.
func (p *SLAPolicy) ResponseBudget() time.Duration {
	return time.Duration(p.ResponseTimeHours) * time.Hour
}

// ResolutionBudget returns the resolution window as a duration.
func (p *SLAPolicy) ResolutionBudget() time.Duration {
	return time.Duration(p.ResolutionTimeHours) * time.Hour
}

// BreachType distinguishes response from resolution breaches.
type BreachType string

const (
	BreachResponse   BreachType = "response"
	BreachResolution BreachType = "resolution"
)

// SLABreach is the immutable record of one breach. At most one breach
// exists per (ticket, breach type); the detector checks existence before
// inserting and the schema enforces it with a unique constraint.
type SLABreach struct {
	ID        string
	TicketID  string
	PolicyID  *string
	Type      BreachType
	Deadline  time.Time
	BreachedAt time.Time
	Notified  bool
}
