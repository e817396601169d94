package automation

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// fieldAccessors is the closed table of condition field paths. Each
// accessor returns the stringified value for a ticket snapshot, or nil
// when the value is null (unset reference, missing association).
// Reference-valued fields resolve to the referenced entity's stable ID,
// never its display form.
var fieldAccessors = map[string]func(*domain.Ticket) *string{
	"status": func(t *domain.Ticket) *string {
		return stringRef(string(t.Status))
	},
	"priority": func(t *domain.Ticket) *string {
		return stringRef(string(t.Priority))
	},
	"source": func(t *domain.Ticket) *string {
		return stringRef(string(t.Source))
	},
	"title": func(t *domain.Ticket) *string {
		return stringRef(t.Title)
	},
	"is_escalated": func(t *domain.Ticket) *string {
		return stringRef(strconv.FormatBool(t.IsEscalated))
	},
	"escalation_level": func(t *domain.Ticket) *string {
		return stringRef(strconv.Itoa(t.EscalationLevel))
	},
	"customer": func(t *domain.Ticket) *string {
		return stringRef(t.CustomerID)
	},
	"assigned_agent": func(t *domain.Ticket) *string {
		return t.AssignedAgentID
	},
	"category": func(t *domain.Ticket) *string {
		return t.CategoryID
	},
	"sla_policy": func(t *domain.Ticket) *string {
		return t.SLAPolicyID
	},
	"category.name": func(t *domain.Ticket) *string {
		if t.Category == nil {
			return nil
		}
		return stringRef(t.Category.Name)
	},
	"category.slug": func(t *domain.Ticket) *string {
		if t.Category == nil {
			return nil
		}
		return stringRef(t.Category.Slug)
	},
}

// Matcher evaluates rule conditions against ticket snapshots.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher constructs a matcher.
func NewMatcher(logger *zap.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// Match reports whether the ticket satisfies every condition. An empty
// condition set always matches. Conditions are evaluated in order and
// the first mismatch short-circuits. A field path outside the accessor
// table is a resolution error: it is logged and treated as no-match,
// never propagated, so sibling rules keep evaluating.
func (m *Matcher) Match(conditions []domain.Condition, ticket *domain.Ticket) bool {
	for _, condition := range conditions {
		accessor, ok := fieldAccessors[condition.Field]
		if !ok {
			m.logger.Warn("unknown condition field",
				zap.String("field", condition.Field),
				zap.String("ticket_id", ticket.ID))
			return false
		}
		actual := accessor(ticket)
		if actual == nil {
			// null never equals a concrete expected value
			if condition.Value == "" {
				continue
			}
			return false
		}
		if !strings.EqualFold(*actual, condition.Value) {
			return false
		}
	}
	return true
}

func stringRef(s string) *string {
	return &s
}
