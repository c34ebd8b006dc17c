// Package postgresql provides a PostgreSQL backed checkpoint store.
// Idempotent checkpoint writes map onto upserts keyed by
// (execution_id, unit_name).
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/checkpoint/sqlbase"
	"github.com/costray/costray/pkg/models"
)

// Store implements checkpoint.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to PostgreSQL and runs pending migrations.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database, logger: logger}, nil
}

// CreateExecution creates and persists a fresh running execution state.
func (s *Store) CreateExecution(ctx context.Context, totalUnits int) (*models.ExecutionState, error) {
	state := models.NewExecutionState(totalUnits)

	err := s.UpdateExecution(ctx, state)
	if err != nil {
		return nil, err
	}

	return state, nil
}

// LoadExecution loads an execution state by ID.
func (s *Store) LoadExecution(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM executions WHERE id = $1", executionID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoint.ErrExecutionNotFound
		}

		return nil, checkpoint.NewStoreError("LoadExecution", executionID, "", err)
	}

	state := &models.ExecutionState{}

	err = json.Unmarshal(data, state)
	if err != nil {
		return nil, checkpoint.NewStoreError("LoadExecution", executionID, "", err)
	}

	return state, nil
}

// UpdateExecution upserts the execution state document.
func (s *Store) UpdateExecution(ctx context.Context, state *models.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return checkpoint.NewStoreError("UpdateExecution", state.ID, "", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (id, status, started_at, state, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, state = EXCLUDED.state, updated_at = NOW()
	`, state.ID, string(state.Status), state.StartedAt, data)
	if err != nil {
		return checkpoint.NewStoreError("UpdateExecution", state.ID, "", err)
	}

	return nil
}

// SaveResult upserts a unit checkpoint. Last write wins.
func (s *Store) SaveResult(ctx context.Context, cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return checkpoint.NewStoreError("SaveResult", cp.ExecutionID, cp.UnitName, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (execution_id, unit_name, payload, saved_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (execution_id, unit_name) DO UPDATE
		SET payload = EXCLUDED.payload, saved_at = NOW()
	`, cp.ExecutionID, cp.UnitName, data)
	if err != nil {
		return checkpoint.NewStoreError("SaveResult", cp.ExecutionID, cp.UnitName, err)
	}

	return nil
}

// LoadResult loads a unit checkpoint.
func (s *Store) LoadResult(ctx context.Context, executionID, unitName string) (*models.Checkpoint, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM checkpoints WHERE execution_id = $1 AND unit_name = $2",
		executionID, unitName,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoint.ErrCheckpointNotFound
		}

		return nil, checkpoint.NewStoreError("LoadResult", executionID, unitName, err)
	}

	cp := &models.Checkpoint{}

	err = json.Unmarshal(data, cp)
	if err != nil {
		return nil, checkpoint.NewStoreError("LoadResult", executionID, unitName, err)
	}

	return cp, nil
}

// IsCompleted reports whether a checkpoint row exists without reading the
// payload column.
func (s *Store) IsCompleted(ctx context.Context, executionID, unitName string) (bool, error) {
	var exists bool

	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM checkpoints WHERE execution_id = $1 AND unit_name = $2)",
		executionID, unitName,
	).Scan(&exists)
	if err != nil {
		return false, checkpoint.NewStoreError("IsCompleted", executionID, unitName, err)
	}

	return exists, nil
}

// SaveReport upserts the final report for an execution.
func (s *Store) SaveReport(ctx context.Context, report *models.FinalReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return checkpoint.NewStoreError("SaveReport", report.ExecutionID, "", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (execution_id, report, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (execution_id) DO UPDATE
		SET report = EXCLUDED.report, created_at = NOW()
	`, report.ExecutionID, data)
	if err != nil {
		return checkpoint.NewStoreError("SaveReport", report.ExecutionID, "", err)
	}

	return nil
}

// LoadReport loads the final report for an execution.
func (s *Store) LoadReport(ctx context.Context, executionID string) (*models.FinalReport, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx,
		"SELECT report FROM reports WHERE execution_id = $1", executionID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoint.ErrReportNotFound
		}

		return nil, checkpoint.NewStoreError("LoadReport", executionID, "", err)
	}

	report := &models.FinalReport{}

	err = json.Unmarshal(data, report)
	if err != nil {
		return nil, checkpoint.NewStoreError("LoadReport", executionID, "", err)
	}

	return report, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
