// Package sla attaches policy deadlines to tickets and detects tickets
// that blew past them.
package sla

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Resolver selects the SLA policy for a ticket and stamps its deadlines.
// Deadlines are computed exactly once, from the ticket's creation time;
// later priority or policy edits never move them.
type Resolver struct {
	policies repository.SLAPolicyRepository
	tickets  repository.TicketRepository
	logger   *zap.Logger
}

// NewResolver instantiates resolver.
func NewResolver(policies repository.SLAPolicyRepository, tickets repository.TicketRepository, logger *zap.Logger) *Resolver {
	return &Resolver{policies: policies, tickets: tickets, logger: logger}
}

// Apply attaches the active policy matching the ticket's priority and
// computes both deadlines from CreatedAt. A ticket whose priority has no
// active policy is left untouched; that is a configuration state, not an
// error.
func (r *Resolver) Apply(ctx context.Context, ticket *domain.Ticket) error {
	policy, err := r.policies.GetActiveByPriority(ctx, ticket.Priority)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("no active sla policy for priority",
			zap.String("ticket_id", ticket.ID),
			zap.String("priority", string(ticket.Priority)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve sla policy: %w", err)
	}

	response := ticket.CreatedAt.Add(policy.ResponseBudget())
	resolution := ticket.CreatedAt.Add(policy.ResolutionBudget())

	ticket.SLAPolicyID = &policy.ID
	ticket.SLAResponseDeadline = &response
	ticket.SLAResolutionDeadline = &resolution
	return nil
}

// ApplyMissing backfills policies onto open tickets that never got one,
// typically after the first policy for a priority is created. Deadlines
// are still derived from each ticket's original creation time, so a
// backfilled ticket can become breach-eligible immediately. Returns how
// many tickets were repaired.
func (r *Resolver) ApplyMissing(ctx context.Context, limit int) (int, error) {
	tickets, err := r.tickets.ListMissingPolicy(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list tickets missing policy: %w", err)
	}

	repaired := 0
	for i := range tickets {
		ticket := &tickets[i]
		if err := r.Apply(ctx, ticket); err != nil {
			r.logger.Error("sla backfill failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		if ticket.SLAPolicyID == nil {
			continue
		}
		// field-scoped write: the listing snapshot is stale by now, and a
		// full-row update would clobber concurrent ticket changes
		err := r.tickets.AttachPolicy(ctx, ticket.ID, *ticket.SLAPolicyID,
			*ticket.SLAResponseDeadline, *ticket.SLAResolutionDeadline)
		if errors.Is(err, pgx.ErrNoRows) {
			// ticket deleted or a policy landed concurrently
			continue
		}
		if err != nil {
			r.logger.Error("sla backfill persist failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		repaired++
	}

	if repaired > 0 {
		r.logger.Info("sla backfill completed", zap.Int("repaired", repaired))
	}
	return repaired, nil
}
