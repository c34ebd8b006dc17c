// Package main provides the Costray scheduler, which starts executions on a
// cron schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/costray/costray/pkg/cmd"
	"github.com/costray/costray/pkg/log"
	"github.com/costray/costray/pkg/orchestrator"
)

func main() {
	cmdline := &cli.Command{
		Name:                  "costray-scheduler",
		Usage:                 "Start cost analysis executions on a cron schedule",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for starting executions",
				Value:   "0 3 * * *",
				Sources: cli.EnvVars("SCHEDULE"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Checkpoint store URL (file path, redis:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "catalog",
				Usage:    "Path to the unit catalog JSON file",
				Required: true,
				Sources:  cli.EnvVars("UNIT_CATALOG"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka broker list (kafka event bus only)",
				Value:   "",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: schedulerAction,
	}

	err := cmdline.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func schedulerAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("costray-scheduler")

	logger.InfoContext(ctx, "Initializing Costray scheduler",
		"schedule", command.String("schedule"))

	units, err := cmd.LoadUnits(logger, command.String("catalog"))
	if err != nil {
		return err
	}

	store := cmd.NewCheckpointStore(ctx, logger, command.String("database-url"))
	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close checkpoint store", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	orch, err := orchestrator.New(orchestrator.DefaultConfig(), store, eventBus,
		noop.NewTracerProvider().Tracer("costray-scheduler"), logger, units)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	_, err = scheduler.AddFunc(command.String("schedule"), func() {
		logger.InfoContext(ctx, "Starting scheduled execution")

		report, err := orch.Run(ctx, orchestrator.RunOptions{})
		if err != nil {
			if errors.Is(err, orchestrator.ErrDeadlineReached) {
				logger.WarnContext(ctx, "Scheduled execution stopped at deadline")

				return
			}

			logger.ErrorContext(ctx, "Scheduled execution failed", "error", err)

			return
		}

		logger.InfoContext(ctx, "Scheduled execution finished",
			"execution_id", report.ExecutionID,
			"status", string(report.Status),
			"total_potential_savings", report.TotalPotentialSavings)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", command.String("schedule"), err)
	}

	scheduler.Start()

	<-ctx.Done()

	logger.Info("Shutting down scheduler")
	waitForJobs(scheduler, logger)

	return nil
}

// waitForJobs stops the cron scheduler and blocks until in-flight jobs
// return.
func waitForJobs(scheduler *cron.Cron, logger *slog.Logger) {
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	logger.Info("Scheduler stopped")
}
