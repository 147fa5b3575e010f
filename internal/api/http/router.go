package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/genmitra/public-complaint-ai-system/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Complaints *handlers.ComplaintsHandler
	// Admission guards the public intake endpoint.
	Admission fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	complaints := app.Group("/complaints")
	if cfg.Admission != nil {
		complaints.Post("/", cfg.Admission, cfg.Complaints.CreateComplaint)
	} else {
		complaints.Post("/", cfg.Complaints.CreateComplaint)
	}
	complaints.Get("/", cfg.Complaints.ListComplaints)
	complaints.Get("/:id", cfg.Complaints.GetComplaint)
	complaints.Post("/:id/updates", cfg.Complaints.AddUpdate)
	complaints.Post("/:id/recompute-priority", cfg.Complaints.RecomputePriority)
}
