package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/cmd"
	"github.com/costray/costray/pkg/config"
	"github.com/costray/costray/pkg/eventbus"
	"github.com/costray/costray/pkg/log"
	"github.com/costray/costray/pkg/orchestrator"
	"github.com/costray/costray/pkg/otelhelper"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start or resume an execution over the full catalog",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:    "execution-id",
				Usage:   "Execution ID to resume (a fresh execution is created if not provided)",
				Value:   "",
				Sources: cli.EnvVars("EXECUTION_ID"),
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
			&cli.IntFlag{
				Name:    "max-concurrent-batches",
				Usage:   "Maximum number of batches analyzed in parallel",
				Value:   orchestrator.DefaultConfig().MaxConcurrentBatches,
				Sources: cli.EnvVars("MAX_CONCURRENT_BATCHES"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Number of non-priority units per batch",
				Value:   orchestrator.DefaultConfig().BatchSize,
				Sources: cli.EnvVars("BATCH_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "deadline",
				Usage:   "Hard wall-clock limit for the whole run (0 for unlimited)",
				Value:   0,
				Sources: cli.EnvVars("RUN_DEADLINE"),
			},
			&cli.DurationFlag{
				Name:    "deadline-margin",
				Usage:   "How close to the deadline new units stop being started",
				Value:   orchestrator.DefaultConfig().DeadlineMargin,
				Sources: cli.EnvVars("DEADLINE_MARGIN"),
			},
			&cli.DurationFlag{
				Name:    "unit-timeout",
				Usage:   "Timeout for one unit's pipeline attempt",
				Value:   orchestrator.DefaultConfig().UnitTimeout,
				Sources: cli.EnvVars("UNIT_TIMEOUT"),
			},
		),
		Action: runAction,
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
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
			Name:    "config",
			Usage:   "Path to a YAML file with orchestrator settings (flags override it)",
			Value:   "",
			Sources: cli.EnvVars("COSTRAY_CONFIG"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces via OTLP",
			Value:   false,
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func runAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("costray-orchestrator")

	logger.InfoContext(ctx, "Initializing Costray orchestrator")

	orch, store, eventBus, err := buildOrchestrator(ctx, command, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close checkpoint store", "error", err)
		}

		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	if deadline := command.Duration("deadline"); deadline > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	report, err := orch.Run(ctx, orchestrator.RunOptions{
		ExecutionID: command.String("execution-id"),
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrDeadlineReached) {
			logger.WarnContext(ctx, "Run stopped at the deadline, resume with the same execution ID")

			return nil
		}

		return fmt.Errorf("execution failed: %w", err)
	}

	return json.NewEncoder(os.Stdout).Encode(report)
}

// buildOrchestrator wires the store, event bus, tracer and catalog into one
// orchestrator instance.
func buildOrchestrator(
	ctx context.Context,
	command *cli.Command,
	logger *slog.Logger,
) (*orchestrator.Orchestrator, checkpoint.Store, eventbus.EventBus, error) {
	units, err := cmd.LoadUnits(logger, command.String("catalog"))
	if err != nil {
		return nil, nil, nil, err
	}

	store := cmd.NewCheckpointStore(ctx, logger, command.String("database-url"))
	eventBus := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)

	var tracer trace.Tracer
	if command.Bool("otel") {
		tracer, err = otelhelper.NewTracer(ctx, "costray-orchestrator")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("initializing tracer: %w", err)
		}
	} else {
		tracer = noop.NewTracerProvider().Tracer("costray-orchestrator")
	}

	cfg := orchestrator.DefaultConfig()

	if path := command.String("config"); path != "" {
		cfg, err = config.LoadOrchestratorConfig(path)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if command.IsSet("max-concurrent-batches") {
		cfg.MaxConcurrentBatches = command.Int("max-concurrent-batches")
	}

	if command.IsSet("batch-size") {
		cfg.BatchSize = command.Int("batch-size")
	}

	if command.IsSet("unit-timeout") {
		cfg.UnitTimeout = command.Duration("unit-timeout")
	}

	if command.IsSet("deadline-margin") {
		cfg.DeadlineMargin = command.Duration("deadline-margin")
	}

	orch, err := orchestrator.New(cfg, store, eventBus, tracer, logger, units)
	if err != nil {
		return nil, nil, nil, err
	}

	return orch, store, eventBus, nil
}
