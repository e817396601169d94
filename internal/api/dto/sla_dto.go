package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// PolicyRequest payload for create and update.
type PolicyRequest struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	Priority            string `json:"priority"`
	ResponseTimeHours   int    `json:"response_time_hours"`
	ResolutionTimeHours int    `json:"resolution_time_hours"`
	EscalationTimeHours int    `json:"escalation_time_hours"`
	IsActive            *bool  `json:"is_active"`
}

// PolicyResponse is the full policy representation.
type PolicyResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Priority            string    `json:"priority"`
	ResponseTimeHours   int       `json:"response_time_hours"`
	ResolutionTimeHours int       `json:"resolution_time_hours"`
	EscalationTimeHours int       `json:"escalation_time_hours"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// BreachResponse is one breach record.
type BreachResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	PolicyID   *string   `json:"policy_id"`
	Type       string    `json:"type"`
	Deadline   time.Time `json:"deadline"`
	BreachedAt time.Time `json:"breached_at"`
	Notified   bool      `json:"notified"`
}

// SLAOverviewResponse aggregates attainment counters.
type SLAOverviewResponse struct {
	TotalWithPolicy    int64 `json:"total_with_policy"`
	ResponseMet        int64 `json:"response_met"`
	ResponseBreached   int64 `json:"response_breached"`
	ResolutionMet      int64 `json:"resolution_met"`
	ResolutionBreached int64 `json:"resolution_breached"`
	TotalBreaches      int64 `json:"total_breaches"`
}

// FromPolicy maps a domain policy.
func FromPolicy(policy *domain.SLAPolicy) PolicyResponse {
	return PolicyResponse{
		ID:                  policy.ID,
		Name:                policy.Name,
		Description:         policy.Description,
		Priority:            string(policy.Priority),
		ResponseTimeHours:   policy.ResponseTimeHours,
		ResolutionTimeHours: policy.ResolutionTimeHours,
		EscalationTimeHours: policy.EscalationTimeHours,
		IsActive:            policy.IsActive,
		CreatedAt:           policy.CreatedAt,
		UpdatedAt:           policy.UpdatedAt,
	}
}

// FromBreach maps a domain breach.
func FromBreach(breach *domain.SLABreach) BreachResponse {
	return BreachResponse{
		ID:         breach.ID,
		TicketID:   breach.TicketID,
		PolicyID:   breach.PolicyID,
		Type:       string(breach.Type),
		Deadline:   breach.Deadline,
		BreachedAt: breach.BreachedAt,
		Notified:   breach.Notified,
	}
}

// FromSLAOverview maps the aggregated attainment counters.
func FromSLAOverview(overview *service.SLAOverview) SLAOverviewResponse {
	return SLAOverviewResponse{
		TotalWithPolicy:    overview.Tickets.TotalWithPolicy,
		ResponseMet:        overview.Tickets.ResponseMet,
		ResponseBreached:   overview.Tickets.ResponseBreached,
		ResolutionMet:      overview.Tickets.ResolutionMet,
		ResolutionBreached: overview.Tickets.ResolutionBreached,
		TotalBreaches:      overview.TotalBreaches,
	}
}
