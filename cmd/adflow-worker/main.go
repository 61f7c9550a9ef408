package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/adopshq/adflow/pkg/triggers/queue"
	"github.com/adopshq/adflow/pkg/triggers/schedule"
)

func main() {
	command := &cli.Command{
		Name:                  "adflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Run the campaign workflow coordinator and triggers",
		Flags: []cli.Flag{
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
				Name:    "monitor-cron",
				Usage:   "Cron expression for the monitoring schedule",
				Value:   "*/15 * * * *",
				Sources: cli.EnvVars("MONITOR_CRON"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Redis queue for external trigger requests (disabled when empty)",
				Sources: cli.EnvVars("TRIGGER_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the queue trigger",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of run workers",
				Value:   coordinator.DefaultWorkers,
				Sources: cli.EnvVars("WORKERS"),
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

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("adflow-worker")
	logger.InfoContext(ctx, "Initializing adflow worker")

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
		err := eventBus.Close()
		if err != nil {
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

	tracer, err := otelhelper.NewTracer(ctx, "adflow-worker")
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
		Config: coordinator.Config{
			Workers: command.Int("workers"),
		},
	})

	scheduleTrigger, err := schedule.NewTrigger(command.String("monitor-cron"), persistence.Campaigns(), coord, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord.Start(ctx)

	err = scheduleTrigger.Start(ctx)
	if err != nil {
		return err
	}

	var queueTrigger *queue.Trigger
	if queueName := command.String("queue-name"); queueName != "" {
		queueTrigger, err = queue.NewTrigger(queueName, map[string]string{
			"addr": command.String("redis-addr"),
		}, coord, logger)
		if err != nil {
			return err
		}

		err = queueTrigger.Start(ctx)
		if err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "adflow worker started")

	<-ctx.Done()

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if queueTrigger != nil {
		_ = queueTrigger.Stop(shutdownCtx)
	}

	_ = scheduleTrigger.Stop(shutdownCtx)
	coord.Stop(shutdownCtx)

	return nil
}
