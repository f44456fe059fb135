package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/egov/grievance-service/internal/api/http/handlers"
	"github.com/egov/grievance-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Grievances     *handlers.GrievancesHandler
	Documents      *handlers.DocumentsHandler
	Reference      *handlers.ReferenceHandler
	AuthMiddleware *auth.Middleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	ref := app.Group("/reference")
	ref.Get("/departments", cfg.Reference.Departments)
	ref.Get("/departments/:id/categories", cfg.Reference.Categories)
	ref.Get("/departments/:id/validate", cfg.Reference.Validate)

	g := app.Group("/grievances", cfg.AuthMiddleware.Handle)
	g.Post("/", cfg.Grievances.Create)
	g.Get("/", cfg.Grievances.List)
	g.Get("/sla-breaches", cfg.Grievances.SLABreaches)
	g.Get("/citizen/:citizenId", cfg.Grievances.ListByCitizen)
	g.Get("/department/:departmentId", cfg.Grievances.ListByDepartment)
	g.Get("/:id", cfg.Grievances.Get)
	g.Get("/:id/history", cfg.Grievances.History)
	g.Put("/:id/assign", cfg.Grievances.Assign)
	g.Put("/:id/in-review", cfg.Grievances.MarkInReview)
	g.Put("/:id/resolve", cfg.Grievances.Resolve)
	g.Put("/:id/close", cfg.Grievances.Close)
	g.Put("/:id/reopen", cfg.Grievances.Reopen)
	g.Put("/:id/escalate", cfg.Grievances.Escalate)
	g.Post("/:id/documents", cfg.Documents.Upload)
	g.Get("/:id/documents", cfg.Documents.List)
	g.Get("/:id/documents/:docId", cfg.Documents.Download)
}
