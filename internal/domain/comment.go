package domain

import "time"

// CommentType distinguishes public replies from staff-only notes and
// system-authored entries.
type CommentType string

const (
	CommentReply        CommentType = "reply"
	CommentInternalNote CommentType = "internal_note"
	CommentSystem       CommentType = "system"
)

// TicketComment is one conversation entry on a ticket. AuthorID is nil
// for system/automation comments.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  *string
	Body      string
	Type      CommentType
	CreatedAt time.Time
}
