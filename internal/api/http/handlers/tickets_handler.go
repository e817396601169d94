package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets       *service.TicketService
	notifications *service.NotificationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, notifications *service.NotificationService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, notifications: notifications}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		CustomerID:  principal.User.ID,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}
	if req.Priority != "" {
		priority, ok := domain.ParseTicketPriority(req.Priority)
		if !ok {
			return util.NewValidationError("unknown priority", map[string]any{"priority": req.Priority})
		}
		input.Priority = priority
	}
	if req.Source != "" {
		switch domain.TicketSource(req.Source) {
		case domain.TicketSourceWeb, domain.TicketSourceEmail, domain.TicketSourceAPI, domain.TicketSourcePhone:
			input.Source = domain.TicketSource(req.Source)
		default:
			return util.NewValidationError("unknown source", map[string]any{"source": req.Source})
		}
	}

	ticket, err := h.tickets.CreateTicket(c.Context(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Update handles PATCH /tickets/:id; staff only.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	input := service.TicketUpdateInput{
		Title:           req.Title,
		Description:     req.Description,
		AssignedAgentID: req.AssignedAgentID,
		CategoryID:      req.CategoryID,
	}
	if req.Status != nil {
		status, ok := domain.ParseTicketStatus(*req.Status)
		if !ok {
			return util.NewValidationError("unknown status", map[string]any{"status": *req.Status})
		}
		input.Status = &status
	}
	if req.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*req.Priority)
		if !ok {
			return util.NewValidationError("unknown priority", map[string]any{"priority": *req.Priority})
		}
		input.Priority = &priority
	}

	ticket, err := h.tickets.UpdateTicket(c.Context(), c.Params("id"), actorID(principal), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// AddComment handles POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	commentType := domain.CommentReply
	if req.Type != "" {
		switch domain.CommentType(req.Type) {
		case domain.CommentReply, domain.CommentInternalNote:
			commentType = domain.CommentType(req.Type)
		default:
			return util.NewValidationError("unknown comment type", map[string]any{"type": req.Type})
		}
	}

	comment, err := h.tickets.AddComment(c.Context(), c.Params("id"), &principal.User.ID, req.Body, commentType)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromComment(comment)})
}

// ListComments handles GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	comments, err := h.tickets.ListComments(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.FromComment(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListActivities handles GET /tickets/:id/activities.
func (h *TicketsHandler) ListActivities(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	activities, err := h.tickets.ListActivities(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(activities))
	for i := range activities {
		items = append(items, dto.FromActivity(&activities[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Escalate handles POST /tickets/:id/escalate; staff only.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.EscalateTicket(c.Context(), c.Params("id"), actorID(principal), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Reopen handles POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	ticket, err := h.tickets.ReopenTicket(c.Context(), c.Params("id"), actorID(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// MyNotifications handles GET /notifications.
func (h *TicketsHandler) MyNotifications(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	limit, _ := pagination(c)
	notifications, err := h.notifications.ListForUser(c.Context(), principal.User.ID, limit)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, dto.FromNotification(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func actorID(principal *auth.Principal) *string {
	if principal == nil || principal.User == nil {
		return nil
	}
	return &principal.User.ID
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit", "50"))
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
