// Package main provides the Zaplane server: webhook ingest, automation API
// and the execution engine in one process.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/zaplane/zaplane/pkg/cmd"
	"github.com/zaplane/zaplane/pkg/engine"
	"github.com/zaplane/zaplane/pkg/log"
	"github.com/zaplane/zaplane/pkg/messaging"
	"github.com/zaplane/zaplane/pkg/messaging/whatsapp"
	"github.com/zaplane/zaplane/pkg/otelhelper"
	"github.com/zaplane/zaplane/pkg/persistence/redisstore"
	"github.com/zaplane/zaplane/pkg/protocol"
	"github.com/zaplane/zaplane/pkg/registry"
	"github.com/zaplane/zaplane/pkg/web"

	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 8080

func main() {
	command := &cli.Command{
		Name:                  "zaplane",
		Usage:                 "Run WhatsApp conversation automations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "pending-store",
				Usage:   "Redis URL for the pending-wait store (defaults to the database)",
				Sources: cli.EnvVars("PENDING_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-token",
				Usage:   "WhatsApp Cloud API access token (empty runs in dry-run mode)",
				Sources: cli.EnvVars("WHATSAPP_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "verify-token",
				Usage:   "Webhook verification token",
				Sources: cli.EnvVars("WEBHOOK_VERIFY_TOKEN"),
			},
			&cli.DurationFlag{
				Name:    "pending-timeout",
				Usage:   "How long a paused execution waits for a user response",
				Value:   engine.DefaultPendingTimeout,
				Sources: cli.EnvVars("PENDING_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "How often the cleanup sweep runs",
				Value:   engine.DefaultSweepInterval,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Setup(command.String("log-level"))
	logger := log.WithModule("zaplane")

	logger.InfoContext(ctx, "Initializing Zaplane")

	persistence := cmd.NewPersistence(command.String("database-url"))
	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var tracer trace.Tracer

	if command.Bool("tracing") {
		var err error

		tracer, err = otelhelper.NewTracer(ctx, "zaplane")
		if err != nil {
			return err
		}
	} else {
		tracer = otelhelper.NoopTracer()
	}

	var sender protocol.Sender
	if token := command.String("whatsapp-token"); token != "" {
		sender = whatsapp.NewClient(token, logger)
	} else {
		logger.WarnContext(ctx, "No WhatsApp token configured, running in dry-run mode")

		sender = &messaging.FakeSender{}
	}

	deps := protocol.Deps{
		Sender:   sender,
		Assigner: &messaging.LoggingAssigner{Logger: logger},
		Contacts: persistence.ContactRepository(),
	}

	reg := registry.NewDefaultRegistry(logger)

	eng := engine.NewEngine(persistence, reg, deps, eventBus, tracer, logger)
	defer eng.Close()

	if pendingURL := command.String("pending-store"); pendingURL != "" {
		store, err := redisstore.NewPendingWaitRepositoryFromURL(pendingURL)
		if err != nil {
			return err
		}

		eng.UsePendingStore(store)
	}

	if err := eng.Restore(ctx); err != nil {
		return err
	}

	dispatcher := engine.NewDispatcher(eng, persistence.AutomationRepository(), logger)

	sweeper := engine.NewSweeper(eng,
		command.Duration("pending-timeout"),
		command.Duration("sweep-interval"),
		logger)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(logger, dispatcher, persistence, validate, reg, command.String("verify-token"))
	api := NewAPI(logger, handlers)

	app := api.App()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err)
		}
	}()

	port := command.Int("port")

	logger.InfoContext(ctx, "Starting server", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
