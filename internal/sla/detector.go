package sla

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Trigger dispatches an automation trigger event for a ticket.
type Trigger interface {
	Run(ctx context.Context, trigger domain.TriggerEvent, ticket *domain.Ticket) error
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory, ticketID *string) error
}

// Detector finds tickets past their deadlines and records breaches. A
// pass is idempotent: each (ticket, breach type) pair produces at most
// one breach ever, guarded three times over by the candidate query, an
// existence check and the table's unique constraint.
type Detector struct {
	tickets  repository.TicketRepository
	breaches repository.SLABreachRepository
	users    repository.UserRepository
	notifier Notifier
	trigger  Trigger
	metrics  *observability.Metrics
	logger   *zap.Logger
	batch    int
}

// DetectorDependencies carries detector wiring. Trigger is optional;
// without it breaches are still recorded but no automation fires.
type DetectorDependencies struct {
	Tickets  repository.TicketRepository
	Breaches repository.SLABreachRepository
	Users    repository.UserRepository
	Notifier Notifier
	Trigger  Trigger
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Batch    int
}

// NewDetector instantiates detector.
func NewDetector(deps DetectorDependencies) *Detector {
	return &Detector{
		tickets:  deps.Tickets,
		breaches: deps.Breaches,
		users:    deps.Users,
		notifier: deps.Notifier,
		trigger:  deps.Trigger,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		batch:    deps.Batch,
	}
}

// Check runs one detection pass over both breach types and returns how
// many new breaches were recorded. Each pass is bounded by the batch
// limit per breach type; remaining candidates surface on the next tick.
func (d *Detector) Check(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	created := 0

	responses, err := d.tickets.ListResponseBreachCandidates(ctx, now, d.batch)
	if err != nil {
		return created, fmt.Errorf("list response breach candidates: %w", err)
	}
	for i := range responses {
		if d.recordBreach(ctx, &responses[i], domain.BreachResponse) {
			created++
		}
	}

	resolutions, err := d.tickets.ListResolutionBreachCandidates(ctx, now, d.batch)
	if err != nil {
		return created, fmt.Errorf("list resolution breach candidates: %w", err)
	}
	for i := range resolutions {
		if d.recordBreach(ctx, &resolutions[i], domain.BreachResolution) {
			created++
		}
	}

	if created > 0 {
		d.logger.Info("sla check recorded breaches", zap.Int("breaches", created))
	}
	return created, nil
}

func (d *Detector) recordBreach(ctx context.Context, ticket *domain.Ticket, breachType domain.BreachType) bool {
	exists, err := d.breaches.Exists(ctx, ticket.ID, breachType)
	if err != nil {
		d.logger.Error("breach existence check failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return false
	}
	if exists {
		return false
	}

	deadline := ticket.SLAResponseDeadline
	if breachType == domain.BreachResolution {
		deadline = ticket.SLAResolutionDeadline
	}
	breach := &domain.SLABreach{
		TicketID: ticket.ID,
		PolicyID: ticket.SLAPolicyID,
		Type:     breachType,
		Deadline: *deadline,
	}
	inserted, err := d.breaches.Create(ctx, breach)
	if err != nil {
		d.logger.Error("breach insert failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("breach_type", string(breachType)),
			zap.Error(err))
		return false
	}
	if !inserted {
		// a concurrent pass beat us to it
		return false
	}

	d.flipMetFlag(ctx, ticket, breachType)
	d.metrics.RecordBreach(string(breachType))
	d.logger.Warn("sla breach recorded",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_key", ticket.TicketKey),
		zap.String("breach_type", string(breachType)),
		zap.Time("deadline", breach.Deadline))

	d.notifyBreach(ctx, ticket, breach)

	if d.trigger != nil {
		if err := d.trigger.Run(ctx, domain.TriggerSLABreach, ticket); err != nil {
			d.logger.Error("sla breach trigger dispatch failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return true
}

// flipMetFlag records the miss with a field-scoped write. The detector
// holds no ticket lock and its candidate snapshot may be stale, so
// writing anything beyond the one flag could erase a reply or status
// change that landed mid-pass.
func (d *Detector) flipMetFlag(ctx context.Context, ticket *domain.Ticket, breachType domain.BreachType) {
	missed := false
	if breachType == domain.BreachResponse {
		ticket.SLAResponseMet = &missed
	} else {
		ticket.SLAResolutionMet = &missed
	}
	if err := d.tickets.SetMetFlag(ctx, ticket.ID, breachType, false); err != nil {
		d.logger.Error("failed to persist sla met flag",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

// notifyBreach alerts the assigned agent, or every manager when the
// ticket is unassigned. Delivery failure never unwinds the breach; the
// record simply stays unnotified.
func (d *Detector) notifyBreach(ctx context.Context, ticket *domain.Ticket, breach *domain.SLABreach) {
	title := fmt.Sprintf("SLA %s breach on ticket %s", breach.Type, ticket.TicketKey)
	message := fmt.Sprintf("Ticket %s missed its %s deadline (%s).",
		ticket.TicketKey, breach.Type, breach.Deadline.Format(time.RFC3339))

	var recipients []string
	if ticket.AssignedAgentID != nil {
		recipients = []string{*ticket.AssignedAgentID}
	} else {
		managers, err := d.users.ListManagers(ctx)
		if err != nil {
			d.logger.Error("failed to list managers for breach alert",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			return
		}
		for _, manager := range managers {
			recipients = append(recipients, manager.ID)
		}
	}

	delivered := true
	for _, userID := range recipients {
		if err := d.notifier.Notify(ctx, userID, title, message, domain.NotifySLABreach, &ticket.ID); err != nil {
			delivered = false
			d.logger.Warn("breach notification failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	if delivered && len(recipients) > 0 {
		if err := d.breaches.MarkNotified(ctx, breach.ID); err != nil {
			d.logger.Error("failed to mark breach notified",
				zap.String("breach_id", breach.ID),
				zap.Error(err))
		}
	}
}
