package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quejas/complaint-service/internal/api/http/handlers"
	"github.com/quejas/complaint-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Complaints *handlers.ComplaintsHandler
	Auth       *handlers.AuthHandler
	Metrics    *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	api := app.Group("/api")
	api.Post("/quejas", cfg.Complaints.Create)
	api.Get("/quejas", cfg.Complaints.List)
	api.Get("/quejas/:code", cfg.Complaints.Get)
	api.Put("/quejas/:code", cfg.Complaints.UpdateStatus)
	api.Post("/login", cfg.Auth.Login)
}

// NewServer builds the fiber app with the middleware chain and routes.
func NewServer(appName string, mw MiddlewareConfig, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, mw)
	RegisterRoutes(app, routes)
	return app
}
