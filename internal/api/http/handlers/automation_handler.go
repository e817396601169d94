package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/pkg/util"
)

// AutomationHandler exposes rule management, execution history and stats.
type AutomationHandler struct {
	automation *service.AutomationService
}

func NewAutomationHandler(automation *service.AutomationService) *AutomationHandler {
	return &AutomationHandler{automation: automation}
}

// CreateRule handles POST /automation/rules.
func (h *AutomationHandler) CreateRule(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	input, err := parseRuleRequest(c)
	if err != nil {
		return err
	}
	rule, err := h.automation.CreateRule(c.Context(), principal.User.ID, *input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromRule(rule)})
}

// GetRule handles GET /automation/rules/:id.
func (h *AutomationHandler) GetRule(c *fiber.Ctx) error {
	rule, err := h.automation.GetRule(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRule(rule)})
}

// ListRules handles GET /automation/rules.
func (h *AutomationHandler) ListRules(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	rules, err := h.automation.ListRules(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, dto.FromRule(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateRule handles PUT /automation/rules/:id.
func (h *AutomationHandler) UpdateRule(c *fiber.Ctx) error {
	input, err := parseRuleRequest(c)
	if err != nil {
		return err
	}
	rule, err := h.automation.UpdateRule(c.Context(), c.Params("id"), *input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRule(rule)})
}

// DeleteRule handles DELETE /automation/rules/:id.
func (h *AutomationHandler) DeleteRule(c *fiber.Ctx) error {
	if err := h.automation.DeleteRule(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListLogs handles GET /automation/logs.
func (h *AutomationHandler) ListLogs(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	filter := repository.ExecutionLogFilter{Limit: limit, Offset: offset}
	if v := c.Query("ticket_id"); v != "" {
		filter.TicketID = &v
	}
	if v := c.Query("rule_id"); v != "" {
		filter.RuleID = &v
	}
	if v := c.Query("outcome"); v != "" {
		outcome := domain.ExecutionOutcome(v)
		switch outcome {
		case domain.OutcomeSuccess, domain.OutcomeFailed, domain.OutcomeSkipped:
			filter.Outcome = &outcome
		default:
			return util.NewValidationError("unknown outcome", map[string]any{"outcome": v})
		}
	}
	logs, err := h.automation.ListLogs(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ExecutionLogResponse, 0, len(logs))
	for i := range logs {
		items = append(items, dto.FromExecutionLog(&logs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats handles GET /automation/stats.
func (h *AutomationHandler) Stats(c *fiber.Ctx) error {
	rules, executions, err := h.automation.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAutomationStats(rules, executions)})
}

func parseRuleRequest(c *fiber.Ctx) (*service.RuleInput, error) {
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, util.NewValidationError("invalid payload", nil)
	}
	input := service.RuleInput{
		Name:           req.Name,
		Description:    req.Description,
		TriggerEvent:   req.TriggerEvent,
		Conditions:     req.DomainConditions(),
		ActionType:     req.ActionType,
		ActionParams:   domain.ActionParams(req.ActionParams),
		PriorityOrder:  req.PriorityOrder,
		IsActive:       true,
		StopProcessing: req.StopProcessing,
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return &input, nil
}
