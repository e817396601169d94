package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Automation     *handlers.AutomationHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Get("/notifications", cfg.Tickets.MyNotifications)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", auth.RequireStaff(), cfg.Tickets.Update)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Get("/:id/activities", auth.RequireStaff(), cfg.Tickets.ListActivities)
	tickets.Post("/:id/escalate", auth.RequireStaff(), cfg.Tickets.Escalate)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)

	// Rule and policy management is restricted to managers and admins;
	// agents can still read rules and execution history.
	manage := auth.RequireRole(domain.RoleManager, domain.RoleAdmin)

	automation := api.Group("/automation", auth.RequireStaff())
	automation.Get("/rules", cfg.Automation.ListRules)
	automation.Get("/rules/:id", cfg.Automation.GetRule)
	automation.Post("/rules", manage, cfg.Automation.CreateRule)
	automation.Put("/rules/:id", manage, cfg.Automation.UpdateRule)
	automation.Delete("/rules/:id", manage, cfg.Automation.DeleteRule)
	automation.Get("/logs", cfg.Automation.ListLogs)
	automation.Get("/stats", cfg.Automation.Stats)

	sla := api.Group("/sla", auth.RequireStaff())
	sla.Get("/policies", cfg.SLA.ListPolicies)
	sla.Get("/policies/:id", cfg.SLA.GetPolicy)
	sla.Post("/policies", manage, cfg.SLA.CreatePolicy)
	sla.Put("/policies/:id", manage, cfg.SLA.UpdatePolicy)
	sla.Delete("/policies/:id", manage, cfg.SLA.DeletePolicy)
	sla.Get("/breaches", cfg.SLA.ListBreaches)
	sla.Get("/stats", cfg.SLA.Stats)
	sla.Post("/check", manage, cfg.SLA.RunCheck)
	sla.Post("/repair", manage, cfg.SLA.Repair)
}
