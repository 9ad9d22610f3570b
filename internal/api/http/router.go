package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unisupport/portal/internal/api/http/handlers"
	"github.com/unisupport/portal/internal/auth"
	"github.com/unisupport/portal/internal/config"
	"github.com/unisupport/portal/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Departments    *handlers.DepartmentsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
	RateLimit      config.RateLimitConfig
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Get("/me", cfg.Users.Me)
	authProtected.Post("/password/change", cfg.Users.ChangePassword)

	departments := api.Group("/departments")
	departments.Get("/", cfg.Departments.List)
	departments.Post("/", cfg.AuthMiddleware.Handle, auth.RequireRoles(domain.RoleAdmin), cfg.Departments.Create)

	createLimiter := noopHandler
	updateLimiter := noopHandler
	if cfg.RateLimiter != nil && cfg.RateLimit.Enabled {
		createLimiter = cfg.RateLimiter.Limit("ticket_create", cfg.RateLimit.CreatePerWindow, cfg.RateLimit.CreateWindow())
		updateLimiter = cfg.RateLimiter.Limit("ticket_update", cfg.RateLimit.UpdatePerWindow, cfg.RateLimit.UpdateWindow())
	}

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", createLimiter, auth.RequireRoles(domain.RoleStudent), cfg.Tickets.CreateTicket)
	tickets.Get("/my", auth.RequireRoles(domain.RoleStudent), cfg.Tickets.ListMine)
	tickets.Get("/", auth.RequireRoles(domain.RoleAdmin), cfg.Tickets.ListAll)
	tickets.Get("/:id", auth.RequireRoles(domain.RoleStudent, domain.RoleAdmin, domain.RoleDepartment), cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", updateLimiter, auth.RequireRoles(domain.RoleDepartment), cfg.Tickets.UpdateStatus)
}

func noopHandler(c *fiber.Ctx) error {
	return c.Next()
}
