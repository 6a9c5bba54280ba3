package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/feedback-portal/feedback-service/internal/api/http/handlers"
	"github.com/feedback-portal/feedback-service/internal/auth"
	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	APIPrefix      string
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Feedback       *handlers.FeedbackHandler
	Users          *handlers.UsersHandler
	Branches       *handlers.BranchesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	api := app.Group(prefix)

	api.Post("/auth/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Post("/auth/logout", cfg.Auth.Logout)
	protected.Post("/auth/refresh", cfg.Auth.Refresh)
	protected.Get("/auth/profile", cfg.Auth.Profile)
	protected.Post("/auth/change-password", cfg.Auth.ChangePassword)

	protected.Get("/feedbacks", cfg.Feedback.List)
	protected.Get("/feedbacks/:id", cfg.Feedback.Get)
	protected.Patch("/feedbacks/:id/workflow", auth.RequireRole(domain.RoleRO, domain.RoleDO, domain.RoleFO), cfg.Feedback.UpdateWorkflow)
	protected.Patch("/feedbacks/:id/review", auth.RequireRole(domain.RoleSuperuser, domain.RoleDO), cfg.Feedback.Review)
	protected.Get("/filters/options", cfg.Feedback.FilterOptions)

	protected.Get("/users/fo", auth.RequireRole(domain.RoleDO, domain.RoleSuperuser), cfg.Feedback.FieldOfficers)

	admin := protected.Group("/users", auth.RequireRole(domain.RoleSuperuser))
	admin.Get("/", cfg.Users.List)
	admin.Post("/", cfg.Users.Create)
	admin.Put("/:id", cfg.Users.Update)
	admin.Delete("/:id", cfg.Users.Delete)
	admin.Post("/:id/reset-password", cfg.Users.ResetPassword)

	protected.Get("/branches", cfg.Branches.List)
	protected.Post("/branches", auth.RequireRole(domain.RoleSuperuser), cfg.Branches.Create)
	protected.Delete("/branches/:roCode", auth.RequireRole(domain.RoleSuperuser), cfg.Branches.Delete)
}
