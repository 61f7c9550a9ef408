// Package main provides the adflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/adopshq/adflow/pkg/alerts"
	"github.com/adopshq/adflow/pkg/coordinator"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/reports"
	"github.com/adopshq/adflow/pkg/steps/create"
	"github.com/adopshq/adflow/pkg/web"
)

type API struct {
	logger        *slog.Logger
	persistence   persistence.Persistence
	coordinator   *coordinator.Coordinator
	creator       *create.Creator
	alertService  *alerts.Service
	reportService *reports.Service
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	coordinator *coordinator.Coordinator,
	creator *create.Creator,
	alertService *alerts.Service,
	reportService *reports.Service,
) *API {
	return &API{
		logger:        logger,
		persistence:   persistence,
		coordinator:   coordinator,
		creator:       creator,
		alertService:  alertService,
		reportService: reportService,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.coordinator, a.creator, a.alertService, a.reportService)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("adflow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
