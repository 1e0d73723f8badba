package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/zaplane/zaplane/pkg/web"
)

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
}

func NewAPI(logger *slog.Logger, handlers *web.APIHandlers) *API {
	return &API{
		logger:   logger,
		handlers: handlers,
	}
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Zaplane")
	})

	app.Get("/webhooks/whatsapp", a.handlers.VerifyWebhook)
	app.Post("/webhooks/whatsapp", a.handlers.ReceiveWebhook)

	automations := app.Group("/automations")
	automations.Get("/", a.handlers.GetAutomations)
	automations.Post("/", a.handlers.CreateAutomation)
	automations.Get("/:id", a.handlers.GetAutomation)

	app.Get("/pending", a.handlers.GetPendingExecutions)
	app.Delete("/pending/:conversationId", a.handlers.CancelPendingExecution)

	app.Get("/executions/:id", a.handlers.GetExecutionLogs)

	app.Get("/health", a.handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
