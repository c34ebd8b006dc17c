package main

import (
	"context"
	"encoding/json"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/costray/costray/pkg/log"
	"github.com/costray/costray/pkg/models"
)

func ProbeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Run a single unit's health check without starting an execution",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:     "unit",
				Usage:    "Name of the unit to probe",
				Required: true,
			},
		),
		Action: probeAction,
	}
}

func probeAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("costray-orchestrator")

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

	unitName := command.String("unit")

	health, err := orch.Probe(ctx, unitName)
	if err != nil {
		return err
	}

	if health.Status != models.HealthHealthy {
		logger.WarnContext(ctx, "Unit is not healthy",
			"unit_name", unitName, "status", string(health.Status))
	}

	return json.NewEncoder(os.Stdout).Encode(health)
}
