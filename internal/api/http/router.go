package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/http/handlers"
	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Public         *handlers.PublicHandler
	Stats          *handlers.StatsHandler
	Trainings      *handlers.TrainingsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *ratelimit.Limiter
}

// RegisterRoutes wires HTTP routes. Public routes are registered before the
// authenticated group so the group's middleware never runs for them.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.AuthMiddleware.Handle, auth.RequireSuperAdmin(), cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/auth/login", cfg.RateLimiter.Middleware("login"), cfg.Auth.Login)
	api.Get("/public/tickets/:code", cfg.RateLimiter.Middleware("public-lookup"), cfg.Public.Lookup)
	api.Get("/trainings/availability", cfg.RateLimiter.Middleware("training-availability"), cfg.Trainings.Availability)
	api.Get("/trainings/check", cfg.RateLimiter.Middleware("training-check"), cfg.Trainings.Check)
	api.Post("/trainings", cfg.RateLimiter.Middleware("training-book"), cfg.Trainings.Book)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Put("/auth/me", cfg.Auth.UpdateMe)

	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)
	protected.Patch("/tickets/:id/assign", auth.RequireSuperAdmin(), cfg.Tickets.Assign)
	protected.Post("/tickets/:id/follow-ups", cfg.Tickets.CreateFollowUp)
	protected.Get("/tickets/:id/report", cfg.Tickets.Report)
	protected.Get("/media/:id", cfg.Tickets.Media)

	protected.Get("/stats", cfg.Stats.Stats)
	protected.Get("/stats/report", cfg.Stats.Report)

	superAdmin := auth.RequireSuperAdmin()
	protected.Get("/users", superAdmin, cfg.Users.List)
	protected.Post("/users", superAdmin, cfg.Users.Create)
	protected.Put("/users/:id", superAdmin, cfg.Users.Update)
	protected.Get("/trainings", superAdmin, cfg.Trainings.List)
}
