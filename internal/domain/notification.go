package domain

import "time"

// NotificationCategory tags the origin of a notification.
type NotificationCategory string

const (
	NotifyTicketUpdate NotificationCategory = "ticket_update"
	NotifyAssignment   NotificationCategory = "assignment"
	NotifyComment      NotificationCategory = "comment"
	NotifyAutomation   NotificationCategory = "automation"
	NotifySLABreach    NotificationCategory = "sla_breach"
	NotifySystem       NotificationCategory = "system"
)

// Notification is one persisted notification row; delivery beyond
// persistence (redis fan-out) is fire-and-forget.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Category  NotificationCategory
	TicketID  *string
	IsRead    bool
	CreatedAt time.Time
}
