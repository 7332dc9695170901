package handler

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bidflow/docs"
	"bidflow/internal/service"
)

// Deps are the collaborators behind the HTTP surface. Nil optional
// collaborators leave their routes unregistered.
type Deps struct {
	// DB backs /health. Nil when the in-memory store is used.
	DB        *sql.DB
	Documents service.DocumentService
	Imports   Importer
	Scheduler SchedulerRunner
	OCR       NotificationSink
	Gatherer  prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate between HTTP and the services.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", Metrics(d.Gatherer))
	}
	app.Get("/swagger/*", SwaggerUI())

	app.Get("/documents", ListDocuments(d.Documents))
	app.Post("/documents", UploadDocument(d.Documents))
	app.Get("/documents/:id", GetDocument(d.Documents))
	app.Delete("/documents/:id", DeleteDocument(d.Documents))
	app.Post("/documents/:id/cancel", CancelDocument(d.Documents))
	app.Post("/documents/:id/retry", RetryDocument(d.Documents))

	if d.Imports != nil {
		app.Post("/imports", ImportOpportunity(d.Imports))
	}
	if d.Scheduler != nil {
		app.Post("/scheduler/run", RunScheduler(d.Scheduler))
	}
	if d.OCR != nil {
		app.Post("/ocr/notifications", ReceiveOcrNotifications(d.OCR))
	}
}

// HealthCheck checks DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is the dependency-free probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Metrics serves the Prometheus exposition format for g.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// SwaggerUI serves the API docs with the host and scheme of the request.
func SwaggerUI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	}
}
