package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/adopshq/adflow/pkg/alerts"
	"github.com/adopshq/adflow/pkg/cmd"
	"github.com/adopshq/adflow/pkg/coordinator"
	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/log"
	"github.com/adopshq/adflow/pkg/metrics"
	"github.com/adopshq/adflow/pkg/otelhelper"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/provider"
	"github.com/adopshq/adflow/pkg/reports"
	"github.com/adopshq/adflow/pkg/steps/create"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "adflow-api",
		Usage:                 "Manage campaigns, runs, alerts and reports",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "provider-url",
				Usage:   "Decision Provider endpoint (stubbed when empty)",
				Sources: cli.EnvVars("DECISION_PROVIDER_URL"),
			},
			&cli.StringFlag{
				Name:    "archive-root",
				Usage:   "Root directory for the report archive",
				Value:   "./data/reports",
				Sources: cli.EnvVars("ARCHIVE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing adflow API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var decisions protocol.DecisionProvider
			if url := command.String("provider-url"); url != "" {
				decisions = provider.NewHTTPProvider(url)
			} else {
				logger.WarnContext(ctx, "No Decision Provider configured, using stub")
				decisions = provider.NewStubProvider()
			}

			emitter, err := metrics.NewEmitter()
			if err != nil {
				return err
			}

			tracer, err := otelhelper.NewTracer(ctx, "adflow-api")
			if err != nil {
				return err
			}

			alertService := alerts.NewService(persistence.Alerts(), eventBus, logger)
			archive := reports.NewFileArchive(command.String("archive-root"))
			reportService := reports.NewService(archive, persistence.Reports(), eventBus, logger)

			reg := cmd.NewRegistry(logger, persistence, alertService, reportService, decisions)

			catalog, err := graph.Catalog(reg)
			if err != nil {
				return err
			}

			coord := coordinator.NewCoordinator(persistence, catalog, coordinator.Options{
				Alerts:  alertService,
				Bus:     eventBus,
				Metrics: emitter,
				Tracer:  tracer,
				Logger:  logger,
			})

			coord.Start(ctx)
			defer coord.Stop(ctx)

			creator := create.NewCreator(decisions, persistence.Campaigns())

			api := NewAPI(
				logger,
				persistence,
				coord,
				creator,
				alertService,
				reportService,
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
