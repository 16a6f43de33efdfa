// Package main provides the OSFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/minerva-erp/osflow/pkg/metrics"
	"github.com/minerva-erp/osflow/pkg/services"
	"github.com/minerva-erp/osflow/pkg/web"
)

type API struct {
	logger   *slog.Logger
	workflow *services.Workflow
	metrics  *metrics.Prometheus
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	workflow *services.Workflow,
	metrics *metrics.Prometheus,
) *API {
	return &API{
		logger:   logger,
		workflow: workflow,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflow, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("OSFlow API")
	})

	if a.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))
	}

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Listening", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
