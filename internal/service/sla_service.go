package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/sla"
	"github.com/spec-kit/support-desk/pkg/util"
)

// SLAService manages policies and exposes the detection and repair
// passes for staff-triggered runs.
type SLAService struct {
	policies repository.SLAPolicyRepository
	breaches repository.SLABreachRepository
	tickets  repository.TicketRepository
	detector *sla.Detector
	resolver *sla.Resolver
	batch    int
	logger   *zap.Logger
}

// SLADependencies bundles SLA admin wiring.
type SLADependencies struct {
	PolicyRepo repository.SLAPolicyRepository
	BreachRepo repository.SLABreachRepository
	TicketRepo repository.TicketRepository
	Detector   *sla.Detector
	Resolver   *sla.Resolver
	BatchLimit int
	Logger     *zap.Logger
}

// PolicyInput describes a policy create/update payload.
type PolicyInput struct {
	Name                string
	Description         string
	Priority            string
	ResponseTimeHours   int
	ResolutionTimeHours int
	EscalationTimeHours int
	IsActive            bool
}

// SLAOverview aggregates policy attainment for reporting.
type SLAOverview struct {
	Tickets       *repository.SLAStats
	TotalBreaches int64
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	return &SLAService{
		policies: deps.PolicyRepo,
		breaches: deps.BreachRepo,
		tickets:  deps.TicketRepo,
		detector: deps.Detector,
		resolver: deps.Resolver,
		batch:    deps.BatchLimit,
		logger:   deps.Logger,
	}
}

// CreatePolicy validates and stores a policy. New tickets of the
// matching priority pick it up immediately; existing tickets keep their
// stamped deadlines.
func (s *SLAService) CreatePolicy(ctx context.Context, input PolicyInput) (*domain.SLAPolicy, error) {
	policy, err := buildPolicy(input)
	if err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, util.MapError(err)
	}
	s.logger.Info("sla policy created",
		zap.String("policy_id", policy.ID),
		zap.String("priority", string(policy.Priority)))
	return policy, nil
}

// UpdatePolicy replaces a policy's definition.
func (s *SLAService) UpdatePolicy(ctx context.Context, id string, input PolicyInput) (*domain.SLAPolicy, error) {
	existing, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	policy, err := buildPolicy(input)
	if err != nil {
		return nil, err
	}
	policy.ID = existing.ID
	policy.CreatedAt = existing.CreatedAt
	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, util.MapError(err)
	}
	return policy, nil
}

// DeletePolicy removes a policy. Tickets referencing it keep their
// deadlines; only the catalog entry goes away.
func (s *SLAService) DeletePolicy(ctx context.Context, id string) error {
	return util.MapError(s.policies.Delete(ctx, id))
}

// GetPolicy fetches one policy.
func (s *SLAService) GetPolicy(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	return policy, nil
}

// ListPolicies returns the catalog.
func (s *SLAService) ListPolicies(ctx context.Context) ([]domain.SLAPolicy, error) {
	return s.policies.List(ctx)
}

// ListBreaches returns filtered breach records.
func (s *SLAService) ListBreaches(ctx context.Context, filter repository.BreachFilter) ([]domain.SLABreach, error) {
	return s.breaches.List(ctx, filter)
}

// RunCheck executes one on-demand detection pass and returns how many
// breaches it recorded.
func (s *SLAService) RunCheck(ctx context.Context) (int, error) {
	return s.detector.Check(ctx)
}

// Repair backfills policies onto tickets that never got one.
func (s *SLAService) Repair(ctx context.Context) (int, error) {
	return s.resolver.ApplyMissing(ctx, s.batch)
}

// Overview aggregates attainment counters.
func (s *SLAService) Overview(ctx context.Context) (*SLAOverview, error) {
	stats, err := s.tickets.SLAStats(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	total, err := s.breaches.Count(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return &SLAOverview{Tickets: stats, TotalBreaches: total}, nil
}

func buildPolicy(input PolicyInput) (*domain.SLAPolicy, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, util.NewValidationError("policy name is required", nil)
	}
	priority, ok := domain.ParseTicketPriority(input.Priority)
	if !ok {
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if input.ResponseTimeHours <= 0 || input.ResolutionTimeHours <= 0 {
		return nil, util.NewValidationError("response and resolution budgets must be positive", nil)
	}
	if input.ResolutionTimeHours < input.ResponseTimeHours {
		return nil, util.NewValidationError("resolution budget cannot be shorter than the response budget", nil)
	}
	if input.EscalationTimeHours < 0 {
		return nil, util.NewValidationError("escalation threshold cannot be negative", nil)
	}
	return &domain.SLAPolicy{
		Name:                name,
		Description:         strings.TrimSpace(input.Description),
		Priority:            priority,
		ResponseTimeHours:   input.ResponseTimeHours,
		ResolutionTimeHours: input.ResolutionTimeHours,
		EscalationTimeHours: input.EscalationTimeHours,
		IsActive:            input.IsActive,
	}, nil
}
