package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/pkg/util"
)

// SLAHandler exposes policy management, breach history and attainment stats.
type SLAHandler struct {
	sla *service.SLAService
}

func NewSLAHandler(sla *service.SLAService) *SLAHandler {
	return &SLAHandler{sla: sla}
}

// CreatePolicy handles POST /sla/policies.
func (h *SLAHandler) CreatePolicy(c *fiber.Ctx) error {
	input, err := parsePolicyRequest(c)
	if err != nil {
		return err
	}
	policy, err := h.sla.CreatePolicy(c.Context(), *input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromPolicy(policy)})
}

// GetPolicy handles GET /sla/policies/:id.
func (h *SLAHandler) GetPolicy(c *fiber.Ctx) error {
	policy, err := h.sla.GetPolicy(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromPolicy(policy)})
}

// ListPolicies handles GET /sla/policies.
func (h *SLAHandler) ListPolicies(c *fiber.Ctx) error {
	policies, err := h.sla.ListPolicies(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, dto.FromPolicy(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdatePolicy handles PUT /sla/policies/:id.
func (h *SLAHandler) UpdatePolicy(c *fiber.Ctx) error {
	input, err := parsePolicyRequest(c)
	if err != nil {
		return err
	}
	policy, err := h.sla.UpdatePolicy(c.Context(), c.Params("id"), *input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromPolicy(policy)})
}

// DeletePolicy handles DELETE /sla/policies/:id.
func (h *SLAHandler) DeletePolicy(c *fiber.Ctx) error {
	if err := h.sla.DeletePolicy(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListBreaches handles GET /sla/breaches.
func (h *SLAHandler) ListBreaches(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	filter := repository.BreachFilter{Limit: limit, Offset: offset}
	if v := c.Query("ticket_id"); v != "" {
		filter.TicketID = &v
	}
	if v := c.Query("type"); v != "" {
		breachType := domain.BreachType(v)
		switch breachType {
		case domain.BreachResponse, domain.BreachResolution:
			filter.Type = &breachType
		default:
			return util.NewValidationError("unknown breach type", map[string]any{"type": v})
		}
	}
	breaches, err := h.sla.ListBreaches(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.BreachResponse, 0, len(breaches))
	for i := range breaches {
		items = append(items, dto.FromBreach(&breaches[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats handles GET /sla/stats.
func (h *SLAHandler) Stats(c *fiber.Ctx) error {
	overview, err := h.sla.Overview(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromSLAOverview(overview)})
}

// RunCheck handles POST /sla/check; forces a breach sweep outside the
// scheduler cadence.
func (h *SLAHandler) RunCheck(c *fiber.Ctx) error {
	breaches, err := h.sla.RunCheck(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"breaches": breaches}})
}

// Repair handles POST /sla/repair; backfills policies onto tickets that
// predate the active policy set.
func (h *SLAHandler) Repair(c *fiber.Ctx) error {
	repaired, err := h.sla.Repair(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"repaired": repaired}})
}

func parsePolicyRequest(c *fiber.Ctx) (*service.PolicyInput, error) {
	var req dto.PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, util.NewValidationError("invalid payload", nil)
	}
	input := service.PolicyInput{
		Name:                req.Name,
		Description:         req.Description,
		Priority:            req.Priority,
		ResponseTimeHours:   req.ResponseTimeHours,
		ResolutionTimeHours: req.ResolutionTimeHours,
		EscalationTimeHours: req.EscalationTimeHours,
		IsActive:            true,
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return &input, nil
}
