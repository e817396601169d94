package automation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ErrActionSkipped marks an action that had nothing to do, such as a
// notification whose resolved recipient is absent. Skips are recorded
// but are not failures.
var ErrActionSkipped = errors.New("action skipped")

// Mutator applies automation-driven changes to a ticket. Mutations made
// through this interface persist the ticket and record activity but do
// not re-enter automation, which keeps rule execution from cascading.
type Mutator interface {
	ApplyAssignment(ctx context.Context, ticket *domain.Ticket, agent *domain.User) error
	ApplyPriority(ctx context.Context, ticket *domain.Ticket, priority domain.TicketPriority) error
	ApplyStatus(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus) error
	ApplyTag(ctx context.Context, ticket *domain.Ticket, tag *domain.Tag) error
	ApplyEscalation(ctx context.Context, ticket *domain.Ticket) error
	ApplyInternalNote(ctx context.Context, ticket *domain.Ticket, message string) error
}

// AgentDirectory resolves assignable staff users.
type AgentDirectory interface {
	FindEligibleAgent(ctx context.Context, userID string) (*domain.User, error)
}

// TagDirectory resolves tags by name, creating them on first use.
type TagDirectory interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Tag, error)
}

// NotificationSink delivers a notification to a user. Implementations
// must not panic; a delivery failure is returned as an error.
type NotificationSink interface {
	Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory, ticketID *string) error
}

// ActionFunc executes one action for a matched rule and returns a short
// human-readable description of what was done.
type ActionFunc func(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error)

// ActionSet maps action types to their handlers.
type ActionSet struct {
	mutator  Mutator
	agents   AgentDirectory
	tags     TagDirectory
	sink     NotificationSink
	logger   *zap.Logger
	handlers map[domain.ActionType]ActionFunc
}

// NewActionSet constructs an action set with all built-in handlers
// registered.
func NewActionSet(mutator Mutator, agents AgentDirectory, tags TagDirectory, sink NotificationSink, logger *zap.Logger) *ActionSet {
	s := &ActionSet{
		mutator: mutator,
		agents:  agents,
		tags:    tags,
		sink:    sink,
		logger:  logger,
	}
	s.handlers = map[domain.ActionType]ActionFunc{
		domain.ActionAssignAgent:      s.assignAgent,
		domain.ActionChangePriority:   s.changePriority,
		domain.ActionChangeStatus:     s.changeStatus,
		domain.ActionAddTag:           s.addTag,
		domain.ActionSendNotification: s.sendNotification,
		domain.ActionEscalate:         s.escalate,
		domain.ActionAddComment:       s.addComment,
	}
	return s
}

// Register installs or replaces the handler for an action type. It
// exists so deployments can extend the engine without touching the
// built-in handlers.
func (s *ActionSet) Register(actionType domain.ActionType, fn ActionFunc) {
	s.handlers[actionType] = fn
}

// Execute runs the rule's action against the ticket. Unknown action
// types and handler panics are converted to errors so a misconfigured
// rule can never take down the dispatch loop.
func (s *ActionSet) Execute(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (result string, err error) {
	handler, ok := s.handlers[rule.ActionType]
	if !ok {
		s.logger.Warn("unknown automation action type",
			zap.String("rule_id", rule.ID),
			zap.String("action_type", string(rule.ActionType)))
		return "", fmt.Errorf("unknown action type %q", rule.ActionType)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("automation action panicked",
				zap.String("rule_id", rule.ID),
				zap.Any("panic", r))
			err = fmt.Errorf("action %s panicked: %v", rule.ActionType, r)
		}
	}()
	return handler(ctx, rule, ticket)
}

func (s *ActionSet) assignAgent(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	agentID := rule.ActionParams["agent_id"]
	if agentID == "" {
		return "", errors.New("assign_agent requires an agent_id parameter")
	}
	agent, err := s.agents.FindEligibleAgent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("agent %s not found or not eligible for assignment", agentID)
	}
	if err := s.mutator.ApplyAssignment(ctx, ticket, agent); err != nil {
		return "", err
	}
	return fmt.Sprintf("assigned ticket to %s", agent.FullName), nil
}

func (s *ActionSet) changePriority(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	priority, ok := domain.ParseTicketPriority(rule.ActionParams["priority"])
	if !ok {
		return "", fmt.Errorf("invalid priority %q", rule.ActionParams["priority"])
	}
	old := ticket.Priority
	if err := s.mutator.ApplyPriority(ctx, ticket, priority); err != nil {
		return "", err
	}
	return fmt.Sprintf("changed priority from %s to %s", old, priority), nil
}

func (s *ActionSet) changeStatus(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	status, ok := domain.ParseTicketStatus(rule.ActionParams["status"])
	if !ok {
		return "", fmt.Errorf("invalid status %q", rule.ActionParams["status"])
	}
	old := ticket.Status
	if err := s.mutator.ApplyStatus(ctx, ticket, status); err != nil {
		return "", err
	}
	return fmt.Sprintf("changed status from %s to %s", old, status), nil
}

func (s *ActionSet) addTag(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	name := rule.ActionParams["tag"]
	if name == "" {
		return "", errors.New("add_tag requires a tag parameter")
	}
	tag, err := s.tags.GetOrCreate(ctx, name)
	if err != nil {
		return "", err
	}
	if err := s.mutator.ApplyTag(ctx, ticket, tag); err != nil {
		return "", err
	}
	return fmt.Sprintf("added tag %s", tag.Name), nil
}

func (s *ActionSet) escalate(ctx context.Context, _ *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	if err := s.mutator.ApplyEscalation(ctx, ticket); err != nil {
		return "", err
	}
	return fmt.Sprintf("escalated ticket to level %d", ticket.EscalationLevel), nil
}

func (s *ActionSet) addComment(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	message := rule.ActionParams["message"]
	if message == "" {
		message = "Automated internal note"
	}
	if err := s.mutator.ApplyInternalNote(ctx, ticket, message); err != nil {
		return "", err
	}
	return "added internal note", nil
}

func (s *ActionSet) sendNotification(ctx context.Context, rule *domain.AutomationRule, ticket *domain.Ticket) (string, error) {
	message := rule.ActionParams["message"]
	if message == "" {
		message = fmt.Sprintf("Automation triggered for ticket %s", ticket.TicketKey)
	}
	recipients := rule.ActionParams["recipients"]
	if recipients == "" {
		recipients = "agent"
	}

	var userID string
	switch recipients {
	case "agent":
		if ticket.AssignedAgentID == nil {
			return "", fmt.Errorf("%w: ticket has no assigned agent", ErrActionSkipped)
		}
		userID = *ticket.AssignedAgentID
	case "customer":
		userID = ticket.CustomerID
	default:
		return "", fmt.Errorf("%w: unknown recipients %q", ErrActionSkipped, recipients)
	}

	title := fmt.Sprintf("Update on ticket %s", ticket.TicketKey)
	if err := s.sink.Notify(ctx, userID, title, message, domain.NotifyAutomation, &ticket.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("sent notification to %s", recipients), nil
}
