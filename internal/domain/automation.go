package domain

import "time"

// TriggerEvent enumerates the lifecycle and scheduler events that can
// fire automation rules.
type TriggerEvent string

const (
	TriggerTicketCreated   TriggerEvent = "ticket_created"
	TriggerTicketUpdated   TriggerEvent = "ticket_updated"
	TriggerTicketAssigned  TriggerEvent = "ticket_assigned"
	TriggerTicketCommented TriggerEvent = "ticket_commented"
	TriggerSLABreach       TriggerEvent = "sla_breach"
	TriggerTicketIdle      TriggerEvent = "ticket_idle"
)

// ParseTriggerEvent validates a raw trigger event value.
func ParseTriggerEvent(raw string) (TriggerEvent, bool) {
	switch TriggerEvent(raw) {
	case TriggerTicketCreated, TriggerTicketUpdated, TriggerTicketAssigned,
		TriggerTicketCommented, TriggerSLABreach, TriggerTicketIdle:
		return TriggerEvent(raw), true
	}
	return "", false
}

// ActionType enumerates the actions a rule can execute.
type ActionType string

const (
	ActionAssignAgent      ActionType = "assign_agent"
	ActionChangePriority   ActionType = "change_priority"
	ActionChangeStatus     ActionType = "change_status"
	ActionAddTag           ActionType = "add_tag"
	ActionSendNotification ActionType = "send_notification"
	ActionEscalate         ActionType = "escalate"
	ActionAddComment       ActionType = "add_comment"
)

// ParseActionType validates a raw action type value.
func ParseActionType(raw string) (ActionType, bool) {
	switch ActionType(raw) {
	case ActionAssignAgent, ActionChangePriority, ActionChangeStatus,
		ActionAddTag, ActionSendNotification, ActionEscalate, ActionAddComment:
		return ActionType(raw), true
	}
	return "", false
}

// Condition is one field-path/expected-value pair. Conditions are kept
// as an ordered slice rather than a map so evaluation (and its
// short-circuit point) is deterministic.
type Condition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ActionParams carries opaque key/value parameters interpreted by the
// action handler for the rule's action type.
type ActionParams map[string]string

// AutomationRule defines one trigger/conditions/action unit. Rules are
// authored by staff operators and never mutated by the engine itself;
// they are soft-disabled via IsActive.
type AutomationRule struct {
	ID          string
	Name        string
	Description string

	TriggerEvent TriggerEvent
	Conditions   []Condition
	ActionType   ActionType
	ActionParams ActionParams

	// PriorityOrder orders execution within one trigger; lower runs first.
	PriorityOrder int
	IsActive      bool
	// StopProcessing halts evaluation of later rules once this rule
	// matches, whether or not its action succeeded.
	StopProcessing bool

	CreatedByID *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExecutionOutcome is the recorded result of one rule evaluation.
type ExecutionOutcome string

const (
	OutcomeSuccess ExecutionOutcome = "success"
	OutcomeFailed  ExecutionOutcome = "failed"
	OutcomeSkipped ExecutionOutcome = "skipped"
)

// RuleExecutionLog is the immutable audit record of one rule execution
// attempt against one ticket. RuleID is nullable so the record survives
// rule deletion.
type RuleExecutionLog struct {
	ID           string
	RuleID       *string
	TicketID     string
	Outcome      ExecutionOutcome
	ActionTaken  string
	ErrorMessage string
	ExecutedAt   time.Time
}
