package bootstrap

import (
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"

	handlers "bidflow/internal/http/handler"
	"bidflow/internal/http/middleware"
)

// HTTPApp builds the Fiber application with the middleware chain and all
// routes bound to the wired services.
func (a *App) HTTPApp() (*fiber.App, error) {
	metrics, err := middleware.NewPrometheusMiddleware(a.Registry)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(a.Config.Fetcher.MaxBytes),
	})

	app.Use(otelfiber.Middleware())
	// RequestID must run before Logger so log lines carry the id.
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(a.Logger))
	app.Use(metrics.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:        a.DB,
		Documents: a.Documents,
		Imports:   a.Importer,
		Scheduler: a.Scheduler,
		OCR:       a.Correlator,
		Gatherer:  a.Registry,
	})
	return app, nil
}
