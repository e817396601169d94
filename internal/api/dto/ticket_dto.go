package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Source      string  `json:"source"`
	CategoryID  *string `json:"category_id"`
}

// UpdateTicketRequest payload; absent fields stay unchanged.
type UpdateTicketRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Status          *string `json:"status"`
	Priority        *string `json:"priority"`
	AssignedAgentID *string `json:"assigned_agent_id"`
	CategoryID      *string `json:"category_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
	Type string `json:"type"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID          string  `json:"id"`
	TicketKey   string  `json:"ticket_key"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CategoryID  *string `json:"category_id"`
	Category    *string `json:"category,omitempty"`

	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority"`
	Source   domain.TicketSource   `json:"source"`
	Tags     []string              `json:"tags"`

	CustomerID      string  `json:"customer_id"`
	AssignedAgentID *string `json:"assigned_agent_id"`

	SLAPolicyID           *string    `json:"sla_policy_id"`
	SLAResponseDeadline   *time.Time `json:"sla_response_deadline"`
	SLAResolutionDeadline *time.Time `json:"sla_resolution_deadline"`
	SLAResponseMet        *bool      `json:"sla_response_met"`
	SLAResolutionMet      *bool      `json:"sla_resolution_met"`
	FirstResponseAt       *time.Time `json:"first_response_at"`
	ResolvedAt            *time.Time `json:"resolved_at"`

	IsEscalated     bool `json:"is_escalated"`
	EscalationLevel int  `json:"escalation_level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentResponse is one conversation entry.
type CommentResponse struct {
	ID        string             `json:"id"`
	AuthorID  *string            `json:"author_id"`
	Body      string             `json:"body"`
	Type      domain.CommentType `json:"type"`
	CreatedAt time.Time          `json:"created_at"`
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID          string              `json:"id"`
	Type        domain.ActivityType `json:"type"`
	ActorID     *string             `json:"actor_id"`
	OldValue    string              `json:"old_value,omitempty"`
	NewValue    string              `json:"new_value,omitempty"`
	Description string              `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NotificationResponse is one stored notification.
type NotificationResponse struct {
	ID        string                      `json:"id"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Category  domain.NotificationCategory `json:"category"`
	TicketID  *string                     `json:"ticket_id"`
	IsRead    bool                        `json:"is_read"`
	CreatedAt time.Time                   `json:"created_at"`
}

// FromTicket maps a domain ticket to its response form.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:                    ticket.ID,
		TicketKey:             ticket.TicketKey,
		Title:                 ticket.Title,
		Description:           ticket.Description,
		CategoryID:            ticket.CategoryID,
		Status:                ticket.Status,
		Priority:              ticket.Priority,
		Source:                ticket.Source,
		Tags:                  ticket.Tags,
		CustomerID:            ticket.CustomerID,
		AssignedAgentID:       ticket.AssignedAgentID,
		SLAPolicyID:           ticket.SLAPolicyID,
		SLAResponseDeadline:   ticket.SLAResponseDeadline,
		SLAResolutionDeadline: ticket.SLAResolutionDeadline,
		SLAResponseMet:        ticket.SLAResponseMet,
		SLAResolutionMet:      ticket.SLAResolutionMet,
		FirstResponseAt:       ticket.FirstResponseAt,
		ResolvedAt:            ticket.ResolvedAt,
		IsEscalated:           ticket.IsEscalated,
		EscalationLevel:       ticket.EscalationLevel,
		CreatedAt:             ticket.CreatedAt,
		UpdatedAt:             ticket.UpdatedAt,
	}
	if ticket.Category != nil {
		name := ticket.Category.Name
		resp.Category = &name
	}
	return resp
}

// FromComment maps a domain comment.
func FromComment(comment *domain.TicketComment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		Type:      comment.Type,
		CreatedAt: comment.CreatedAt,
	}
}

// FromActivity maps a domain activity.
func FromActivity(activity *domain.TicketActivity) ActivityResponse {
	return ActivityResponse{
		ID:          activity.ID,
		Type:        activity.Type,
		ActorID:     activity.ActorID,
		OldValue:    activity.OldValue,
		NewValue:    activity.NewValue,
		Description: activity.Description,
		CreatedAt:   activity.CreatedAt,
	}
}

// FromNotification maps a domain notification.
func FromNotification(notification *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID,
		Title:     notification.Title,
		Message:   notification.Message,
		Category:  notification.Category,
		TicketID:  notification.TicketID,
		IsRead:    notification.IsRead,
		CreatedAt: notification.CreatedAt,
	}
}
