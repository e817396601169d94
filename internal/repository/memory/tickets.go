package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type ticketRepo struct {
	store *Store
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository {
	return &ticketRepo{store: s}
}

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := r.store.now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	r.hydrateCategory(ticket)
	r.store.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = r.store.now()
	r.hydrateCategory(ticket)
	r.store.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *ticketRepo) SetMetFlag(_ context.Context, ticketID string, breachType domain.BreachType, met bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	flag := met
	if breachType == domain.BreachResponse {
		ticket.SLAResponseMet = &flag
	} else {
		ticket.SLAResolutionMet = &flag
	}
	return nil
}

func (r *ticketRepo) AttachPolicy(_ context.Context, ticketID, policyID string, responseDeadline, resolutionDeadline time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[ticketID]
	if !ok || ticket.SLAPolicyID != nil {
		return pgx.ErrNoRows
	}
	id := policyID
	response := responseDeadline
	resolution := resolutionDeadline
	ticket.SLAPolicyID = &id
	ticket.SLAResponseDeadline = &response
	ticket.SLAResolutionDeadline = &resolution
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *ticketRepo) GetByKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, ticket := range r.store.tickets {
		if ticket.TicketKey == key {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *ticketRepo) ListResponseBreachCandidates(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.SLAResponseDeadline == nil || !ticket.SLAResponseDeadline.Before(now) {
			continue
		}
		if ticket.FirstResponseAt != nil {
			continue
		}
		if !answerableStatus(ticket.Status) {
			continue
		}
		if r.store.breachExistsLocked(ticket.ID, domain.BreachResponse) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sortByResponseDeadline(result)
	return capTickets(result, limit), nil
}

func (r *ticketRepo) ListResolutionBreachCandidates(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.SLAResolutionDeadline == nil || !ticket.SLAResolutionDeadline.Before(now) {
			continue
		}
		if !answerableStatus(ticket.Status) {
			continue
		}
		if r.store.breachExistsLocked(ticket.ID, domain.BreachResolution) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SLAResolutionDeadline.Before(*result[j].SLAResolutionDeadline)
	})
	return capTickets(result, limit), nil
}

func (r *ticketRepo) ListIdleBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.store.tickets {
		switch ticket.Status {
		case domain.TicketStatusOpen, domain.TicketStatusAssigned, domain.TicketStatusInProgress:
		default:
			continue
		}
		if !ticket.UpdatedAt.Before(cutoff) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return capTickets(result, limit), nil
}

func (r *ticketRepo) ListMissingPolicy(_ context.Context, limit int) ([]domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.SLAPolicyID != nil || ticket.Status.IsTerminal() {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return capTickets(result, limit), nil
}

func (r *ticketRepo) SLAStats(_ context.Context) (*repository.SLAStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var stats repository.SLAStats
	for _, ticket := range r.store.tickets {
		if ticket.SLAPolicyID == nil {
			continue
		}
		stats.TotalWithPolicy++
		if ticket.SLAResponseMet != nil {
			if *ticket.SLAResponseMet {
				stats.ResponseMet++
			} else {
				stats.ResponseBreached++
			}
		}
		if ticket.SLAResolutionMet != nil {
			if *ticket.SLAResolutionMet {
				stats.ResolutionMet++
			} else {
				stats.ResolutionBreached++
			}
		}
	}
	return &stats, nil
}

func (r *ticketRepo) hydrateCategory(ticket *domain.Ticket) {
	if ticket.CategoryID == nil {
		ticket.Category = nil
		return
	}
	if category, ok := r.store.categories[*ticket.CategoryID]; ok {
		clone := *category
		ticket.Category = &clone
	}
}

func answerableStatus(status domain.TicketStatus) bool {
	switch status {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusPending:
		return true
	}
	return false
}

func sortByResponseDeadline(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].SLAResponseDeadline.Before(*tickets[j].SLAResponseDeadline)
	})
}

func capTickets(tickets []domain.Ticket, limit int) []domain.Ticket {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if len(tickets) > limit {
		return tickets[:limit]
	}
	return tickets
}
