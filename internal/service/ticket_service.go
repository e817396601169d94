package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/sla"
	"github.com/spec-kit/support-desk/pkg/util"
)

// Trigger dispatches automation for a lifecycle event. The engine is
// attached after construction via SetAutomation so the wiring has no
// cycle: the engine mutates tickets back through the Apply methods,
// which never re-dispatch.
type Trigger interface {
	Run(ctx context.Context, trigger domain.TriggerEvent, ticket *domain.Ticket) error
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory, ticketID *string) error
}

// TicketService coordinates the ticket lifecycle. Every mutation funnels
// through here so the activity trail, SLA bookkeeping and trigger
// dispatch stay consistent no matter who initiated the change.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.TicketCommentRepository
	activities repository.TicketActivityRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	resolver   *sla.Resolver
	notifier   Notifier
	logger     *zap.Logger

	locks      *ticketLocks
	automation Trigger
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.TicketCommentRepository
	ActivityRepo repository.TicketActivityRepository
	UserRepo     repository.UserRepository
	CategoryRepo repository.CategoryRepository
	Resolver     *sla.Resolver
	Notifier     Notifier
	Logger       *zap.Logger
}

// TicketCreateInput describes the ticket creation payload.
type TicketCreateInput struct {
	CustomerID  string
	Title       string
	Description string
	Priority    domain.TicketPriority
	Source      domain.TicketSource
	CategoryID  *string
}

// TicketUpdateInput carries the optional fields of an update; nil means
// leave unchanged.
type TicketUpdateInput struct {
	Title           *string
	Description     *string
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	AssignedAgentID *string
	CategoryID      *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		activities: deps.ActivityRepo,
		users:      deps.UserRepo,
		categories: deps.CategoryRepo,
		resolver:   deps.Resolver,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		locks:      newTicketLocks(),
	}
}

// SetAutomation attaches the trigger dispatcher. Must be called before
// the service handles traffic.
func (s *TicketService) SetAutomation(trigger Trigger) {
	s.automation = trigger
}

// CreateTicket opens a new ticket: the SLA policy is selected and its
// deadlines stamped here, exactly once for the ticket's lifetime.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title is required", nil)
	}
	if _, err := s.users.GetByID(ctx, input.CustomerID); err != nil {
		return nil, util.NewNotFound("customer", map[string]any{"id": input.CustomerID})
	}

	var category *domain.Category
	if input.CategoryID != nil {
		loaded, err := s.categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, util.NewNotFound("category", map[string]any{"id": *input.CategoryID})
		}
		if !loaded.IsActive {
			return nil, util.NewValidationError("category is inactive", map[string]any{"id": loaded.ID})
		}
		category = loaded
	}

	ticket := &domain.Ticket{
		TicketKey:   generateTicketKey(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Source:      input.Source,
		CustomerID:  input.CustomerID,
		CategoryID:  input.CategoryID,
		Category:    category,
		CreatedAt:   time.Now().UTC(),
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Source == "" {
		ticket.Source = domain.TicketSourceWeb
	}

	if err := s.resolver.Apply(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	s.recordActivity(ctx, ticket.ID, domain.ActivityCreated, &input.CustomerID, "", string(ticket.Status), "ticket created")
	s.notify(ctx, ticket.CustomerID,
		fmt.Sprintf("Ticket %s received", ticket.TicketKey),
		"We have received your request and will get back to you shortly.",
		domain.NotifyTicketUpdate, ticket)

	s.dispatch(ctx, domain.TriggerTicketCreated, ticket)
	return ticket, nil
}

// GetTicket fetches one ticket by ID.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	return ticket, nil
}

// GetTicketByKey fetches one ticket by its external key.
func (s *TicketService) GetTicketByKey(ctx context.Context, key string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByKey(ctx, key)
	if err != nil {
		return nil, util.MapError(err)
	}
	return ticket, nil
}

// ListActivities returns the ticket's audit trail.
func (s *TicketService) ListActivities(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, util.MapError(err)
	}
	return s.activities.ListByTicket(ctx, ticketID, limit, offset)
}

// ListComments returns the ticket's conversation.
func (s *TicketService) ListComments(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, util.MapError(err)
	}
	return s.comments.ListByTicket(ctx, ticketID)
}

// UpdateTicket applies a staff edit. Each changed field gets its own
// activity entry; the matching trigger fires once after everything is
// persisted, with ticket_assigned taking precedence over ticket_updated
// when the assignment changed.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID string, actorID *string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, trigger, err := s.updateTicketLocked(ctx, ticketID, actorID, input)
	if err != nil {
		return nil, err
	}
	// dispatch outside the ticket lock: automation actions funnel back
	// through the Apply methods, which take it again
	if trigger != "" {
		s.dispatch(ctx, trigger, ticket)
	}
	return ticket, nil
}

func (s *TicketService) updateTicketLocked(ctx context.Context, ticketID string, actorID *string, input TicketUpdateInput) (*domain.Ticket, domain.TriggerEvent, error) {
	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, "", util.MapError(err)
	}

	changed := false
	assignmentChanged := false

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, "", util.NewValidationError("title cannot be empty", nil)
		}
		if title != ticket.Title {
			ticket.Title = title
			changed = true
		}
	}
	if input.Description != nil && *input.Description != ticket.Description {
		ticket.Description = strings.TrimSpace(*input.Description)
		changed = true
	}

	if input.Priority != nil && *input.Priority != ticket.Priority {
		old := ticket.Priority
		ticket.Priority = *input.Priority
		// deadlines deliberately stay as stamped at creation
		s.recordActivity(ctx, ticket.ID, domain.ActivityPriorityChanged, actorID, string(old), string(ticket.Priority), "priority changed")
		changed = true
	}

	if input.CategoryID != nil && !sameStringPtr(input.CategoryID, ticket.CategoryID) {
		category, err := s.categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, "", util.NewNotFound("category", map[string]any{"id": *input.CategoryID})
		}
		old := ""
		if ticket.CategoryID != nil {
			old = *ticket.CategoryID
		}
		ticket.CategoryID = &category.ID
		ticket.Category = category
		s.recordActivity(ctx, ticket.ID, domain.ActivityCategoryChanged, actorID, old, category.ID, "category changed")
		changed = true
	}

	if input.AssignedAgentID != nil {
		if ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != *input.AssignedAgentID {
			agent, err := s.users.FindEligibleAgent(ctx, *input.AssignedAgentID)
			if err != nil {
				return nil, "", util.NewValidationError("assignee is not an active staff member", map[string]any{"id": *input.AssignedAgentID})
			}
			s.applyAssignmentLocked(ctx, ticket, agent, actorID)
			changed = true
			assignmentChanged = true
		}
	}

	if input.Status != nil && *input.Status != ticket.Status {
		if err := s.applyStatusLocked(ctx, ticket, *input.Status, actorID); err != nil {
			return nil, "", err
		}
		s.notify(ctx, ticket.CustomerID,
			fmt.Sprintf("Ticket %s is now %s", ticket.TicketKey, ticket.Status),
			fmt.Sprintf("The status of your ticket changed to %s.", ticket.Status),
			domain.NotifyTicketUpdate, ticket)
		changed = true
	}

	if !changed {
		return ticket, "", nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, "", util.MapError(err)
	}

	if assignmentChanged {
		return ticket, domain.TriggerTicketAssigned, nil
	}
	return ticket, domain.TriggerTicketUpdated, nil
}

// AddComment appends a conversation entry. The first staff reply stamps
// the ticket's first response time and settles the response SLA flag.
func (s *TicketService) AddComment(ctx context.Context, ticketID string, authorID *string, body string, commentType domain.CommentType) (*domain.TicketComment, error) {
	comment, ticket, err := s.addCommentLocked(ctx, ticketID, authorID, body, commentType)
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, domain.TriggerTicketCommented, ticket)
	return comment, nil
}

func (s *TicketService) addCommentLocked(ctx context.Context, ticketID string, authorID *string, body string, commentType domain.CommentType) (*domain.TicketComment, *domain.Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil, util.NewValidationError("comment body is required", nil)
	}

	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}

	var author *domain.User
	if authorID != nil {
		author, err = s.users.GetByID(ctx, *authorID)
		if err != nil {
			return nil, nil, util.NewNotFound("user", map[string]any{"id": *authorID})
		}
		if commentType == domain.CommentInternalNote && !author.Role.IsStaff() {
			return nil, nil, util.NewForbidden("only staff can post internal notes")
		}
	}

	comment := &domain.TicketComment{
		TicketID: ticket.ID,
		AuthorID: authorID,
		Body:     body,
		Type:     commentType,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, nil, util.MapError(err)
	}

	activityType := domain.ActivityCommented
	if commentType == domain.CommentInternalNote {
		activityType = domain.ActivityNoteAdded
	}
	s.recordActivity(ctx, ticket.ID, activityType, authorID, "", "", previewBody(body))

	if author != nil && author.Role.IsStaff() && commentType == domain.CommentReply && ticket.FirstResponseAt == nil {
		now := time.Now().UTC()
		ticket.FirstResponseAt = &now
		if ticket.SLAResponseDeadline != nil && ticket.SLAResponseMet == nil {
			met := !now.After(*ticket.SLAResponseDeadline)
			ticket.SLAResponseMet = &met
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, nil, util.MapError(err)
		}
	}

	if commentType == domain.CommentReply {
		s.notifyCommentCounterpart(ctx, ticket, author)
	}
	return comment, ticket, nil
}

// EscalateTicket raises the escalation level by one, capped. Managers
// are alerted on every step.
func (s *TicketService) EscalateTicket(ctx context.Context, ticketID string, actorID *string, reason string) (*domain.Ticket, error) {
	ticket, err := func() (*domain.Ticket, error) {
		release := s.locks.acquire(ticketID)
		defer release()

		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, util.MapError(err)
		}
		if err := s.escalateLocked(ctx, ticket, actorID, reason); err != nil {
			return nil, err
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, util.MapError(err)
		}
		return ticket, nil
	}()
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, domain.TriggerTicketUpdated, ticket)
	return ticket, nil
}

// ReopenTicket moves a resolved or closed ticket back to open.
func (s *TicketService) ReopenTicket(ctx context.Context, ticketID string, actorID *string) (*domain.Ticket, error) {
	ticket, err := func() (*domain.Ticket, error) {
		release := s.locks.acquire(ticketID)
		defer release()

		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, util.MapError(err)
		}
		if !ticket.Status.IsTerminal() {
			return nil, util.NewConflict("only resolved or closed tickets can be reopened", map[string]any{"status": ticket.Status})
		}
		if err := s.applyStatusLocked(ctx, ticket, domain.TicketStatusOpen, actorID); err != nil {
			return nil, err
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, util.MapError(err)
		}
		return ticket, nil
	}()
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, domain.TriggerTicketUpdated, ticket)
	return ticket, nil
}

// ApplyAssignment implements the automation mutation path. Apply methods
// persist and record activity but never dispatch triggers, so a rule's
// action cannot cascade into another rule pass.
func (s *TicketService) ApplyAssignment(ctx context.Context, ticket *domain.Ticket, agent *domain.User) error {
	release := s.locks.acquire(ticket.ID)
	defer release()
	s.applyAssignmentLocked(ctx, ticket, agent, nil)
	return util.MapError(s.tickets.Update(ctx, ticket))
}

// ApplyPriority changes priority on behalf of automation. SLA deadlines
// stay as stamped at creation.
func (s *TicketService) ApplyPriority(ctx context.Context, ticket *domain.Ticket, priority domain.TicketPriority) error {
	release := s.locks.acquire(ticket.ID)
	defer release()
	if ticket.Priority == priority {
		return nil
	}
	old := ticket.Priority
	ticket.Priority = priority
	s.recordActivity(ctx, ticket.ID, domain.ActivityPriorityChanged, nil, string(old), string(priority), "priority changed by automation")
	return util.MapError(s.tickets.Update(ctx, ticket))
}

// ApplyStatus changes status on behalf of automation.
func (s *TicketService) ApplyStatus(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus) error {
	release := s.locks.acquire(ticket.ID)
	defer release()
	if ticket.Status == status {
		return nil
	}
	if err := s.applyStatusLocked(ctx, ticket, status, nil); err != nil {
		return err
	}
	return util.MapError(s.tickets.Update(ctx, ticket))
}

// ApplyTag attaches a tag on behalf of automation.
func (s *TicketService) ApplyTag(ctx context.Context, ticket *domain.Ticket, tag *domain.Tag) error {
	release := s.locks.acquire(ticket.ID)
	defer release()
	for _, existing := range ticket.Tags {
		if existing == tag.Name {
			return nil
		}
	}
	ticket.Tags = append(ticket.Tags, tag.Name)
	s.recordActivity(ctx, ticket.ID, domain.ActivityTagAdded, nil, "", tag.Name, "tag added by automation")
	return util.MapError(s.tickets.Update(ctx, ticket))
}

// ApplyEscalation escalates on behalf of automation.
func (s *TicketService) ApplyEscalation(ctx context.Context, ticket *domain.Ticket) error {
	release := s.locks.acquire(ticket.ID)
	defer release()
	if err := s.escalateLocked(ctx, ticket, nil, "escalated by automation"); err != nil {
		return err
	}
	return util.MapError(s.tickets.Update(ctx, ticket))
}

// ApplyInternalNote appends a system-authored internal note on behalf of
// automation.
func (s *TicketService) ApplyInternalNote(ctx context.Context, ticket *domain.Ticket, message string) error {
	release := s.locks.acquire(ticket.ID)
	defer release()
	comment := &domain.TicketComment{
		TicketID: ticket.ID,
		Body:     message,
		Type:     domain.CommentInternalNote,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return util.MapError(err)
	}
	s.recordActivity(ctx, ticket.ID, domain.ActivityNoteAdded, nil, "", "", previewBody(message))
	return nil
}

func (s *TicketService) applyAssignmentLocked(ctx context.Context, ticket *domain.Ticket, agent *domain.User, actorID *string) {
	activityType := domain.ActivityAssigned
	old := ""
	if ticket.AssignedAgentID != nil {
		activityType = domain.ActivityReassigned
		old = *ticket.AssignedAgentID
	}
	id := agent.ID
	ticket.AssignedAgentID = &id
	if ticket.Status == domain.TicketStatusOpen {
		ticket.Status = domain.TicketStatusAssigned
	}
	s.recordActivity(ctx, ticket.ID, activityType, actorID, old, agent.ID, "assigned to "+agent.FullName)
	s.notify(ctx, agent.ID,
		fmt.Sprintf("Ticket %s assigned to you", ticket.TicketKey),
		ticket.Title,
		domain.NotifyAssignment, ticket)
}

func (s *TicketService) applyStatusLocked(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, actorID *string) error {
	if !isValidTransition(ticket.Status, status) {
		return util.NewConflict(
			fmt.Sprintf("cannot transition from %s to %s", ticket.Status, status),
			map[string]any{"from": ticket.Status, "to": status})
	}

	old := ticket.Status
	reopening := old.IsTerminal() && status == domain.TicketStatusOpen
	ticket.Status = status

	if status.IsTerminal() {
		now := time.Now().UTC()
		ticket.ResolvedAt = &now
		if ticket.SLAResolutionDeadline != nil && ticket.SLAResolutionMet == nil {
			met := !now.After(*ticket.SLAResolutionDeadline)
			ticket.SLAResolutionMet = &met
		}
	} else if ticket.ResolvedAt != nil {
		ticket.ResolvedAt = nil
	}

	if reopening {
		s.recordActivity(ctx, ticket.ID, domain.ActivityReopened, actorID, string(old), string(status), "ticket reopened")
	} else {
		s.recordActivity(ctx, ticket.ID, domain.ActivityStatusChanged, actorID, string(old), string(status), "status changed")
	}
	return nil
}

func (s *TicketService) escalateLocked(ctx context.Context, ticket *domain.Ticket, actorID *string, reason string) error {
	if ticket.EscalationLevel >= domain.MaxEscalationLevel {
		return util.NewConflict("ticket is already at the maximum escalation level", map[string]any{"level": ticket.EscalationLevel})
	}
	old := ticket.EscalationLevel
	ticket.EscalationLevel++
	ticket.IsEscalated = true
	if reason == "" {
		reason = "ticket escalated"
	}
	s.recordActivity(ctx, ticket.ID, domain.ActivityEscalated, actorID,
		fmt.Sprintf("%d", old), fmt.Sprintf("%d", ticket.EscalationLevel), reason)

	managers, err := s.users.ListManagers(ctx)
	if err != nil {
		s.logger.Error("failed to list managers for escalation alert",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return nil
	}
	for _, manager := range managers {
		s.notify(ctx, manager.ID,
			fmt.Sprintf("Ticket %s escalated to level %d", ticket.TicketKey, ticket.EscalationLevel),
			reason,
			domain.NotifySystem, ticket)
	}
	return nil
}

func (s *TicketService) notifyCommentCounterpart(ctx context.Context, ticket *domain.Ticket, author *domain.User) {
	if author != nil && author.Role.IsStaff() {
		s.notify(ctx, ticket.CustomerID,
			fmt.Sprintf("New reply on ticket %s", ticket.TicketKey),
			"A support agent replied to your ticket.",
			domain.NotifyComment, ticket)
		return
	}
	if ticket.AssignedAgentID != nil {
		s.notify(ctx, *ticket.AssignedAgentID,
			fmt.Sprintf("Customer replied on ticket %s", ticket.TicketKey),
			"The customer added a new reply.",
			domain.NotifyComment, ticket)
	}
}

// recordActivity appends one audit entry; a storage failure is logged
// and dropped so the mutation it describes still lands.
func (s *TicketService) recordActivity(ctx context.Context, ticketID string, activityType domain.ActivityType, actorID *string, oldValue, newValue, description string) {
	activity := &domain.TicketActivity{
		TicketID:    ticketID,
		Type:        activityType,
		ActorID:     actorID,
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: description,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		s.logger.Error("failed to record ticket activity",
			zap.String("ticket_id", ticketID),
			zap.String("activity_type", string(activityType)),
			zap.Error(err))
	}
}

func (s *TicketService) notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory, ticket *domain.Ticket) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, title, message, category, &ticket.ID); err != nil {
		s.logger.Warn("ticket notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *TicketService) dispatch(ctx context.Context, trigger domain.TriggerEvent, ticket *domain.Ticket) {
	if s.automation == nil {
		return
	}
	if err := s.automation.Run(ctx, trigger, ticket); err != nil {
		s.logger.Error("trigger dispatch failed",
			zap.String("trigger", string(trigger)),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func previewBody(body string) string {
	const max = 120
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusAssigned:   {domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusAssigned, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusPending:    {domain.TicketStatusOpen, domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
