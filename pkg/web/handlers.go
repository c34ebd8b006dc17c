// Package web provides the read-only HTTP API over execution state, reports
// and store health.
package web

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/costray/costray/pkg/checkpoint"
)

type APIHandlers struct {
	store  checkpoint.Store
	logger *slog.Logger
}

func NewAPIHandlers(store checkpoint.Store, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		store:  store,
		logger: logger,
	}
}

// GetExecution returns the live execution state, including per-unit progress
// counters.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if !validIdentifier(executionID) {
		return badRequest(c, "invalid execution id")
	}

	state, err := h.store.LoadExecution(c.Context(), executionID)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(state)
}

// GetReport returns the final ranked report of a finished execution.
func (h *APIHandlers) GetReport(c fiber.Ctx) error {
	executionID := c.Params("id")
	if !validIdentifier(executionID) {
		return badRequest(c, "invalid execution id")
	}

	report, err := h.store.LoadReport(c.Context(), executionID)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(report)
}

// GetCheckpoint returns the stored result of one unit within an execution.
func (h *APIHandlers) GetCheckpoint(c fiber.Ctx) error {
	executionID := c.Params("id")
	unitName := c.Params("unit")

	if !validIdentifier(executionID) || !validIdentifier(unitName) {
		return badRequest(c, "invalid execution id or unit name")
	}

	cp, err := h.store.LoadResult(c.Context(), executionID, unitName)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(cp)
}

// HealthCheck reports whether the checkpoint store is reachable.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		h.logger.ErrorContext(c.Context(), "Checkpoint store health check failed", "error", err)

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func validIdentifier(value string) bool {
	return value != "" && !strings.Contains(value, "..")
}
