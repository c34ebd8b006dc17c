// Package file provides a file-system backed checkpoint store. It is the
// default backend for local runs and tests: one JSON document per key,
// which makes saves naturally idempotent.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/models"
)

// Store implements checkpoint.Store on the local file system.
type Store struct {
	root string
}

// NewStore creates a file store rooted at the given directory. A "file://"
// prefix is stripped so database-URL style configuration works unchanged.
func NewStore(root string) *Store {
	return &Store{root: strings.Replace(root, "file://", "", 1)}
}

// validateKey rejects identifiers that are unsafe as path segments.
func validateKey(key string) error {
	if key == "" {
		return errors.New("identifier cannot be empty")
	}

	if strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return errors.New("identifier contains invalid characters")
	}

	return nil
}

func (s *Store) executionPath(executionID string) string {
	return filepath.Join(s.root, "executions", executionID+".json")
}

func (s *Store) checkpointPath(executionID, unitName string) string {
	return filepath.Join(s.root, "checkpoints", executionID, unitName+".json")
}

func (s *Store) reportPath(executionID string) string {
	return filepath.Join(s.root, "reports", executionID+".json")
}

// writeJSON writes via a temp file and rename, so a crash mid-write never
// leaves a torn checkpoint behind.
func (s *Store) writeJSON(path string, value any) error {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	tmp := path + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}

func (s *Store) readJSON(path string, value any, notFound error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read file: %w", err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal file %s: %w", path, err)
	}

	return nil
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
func (s *Store) LoadExecution(_ context.Context, executionID string) (*models.ExecutionState, error) {
	if err := validateKey(executionID); err != nil {
		return nil, checkpoint.NewStoreError("LoadExecution", executionID, "", err)
	}

	state := &models.ExecutionState{}

	err := s.readJSON(s.executionPath(executionID), state, checkpoint.ErrExecutionNotFound)
	if err != nil {
		if errors.Is(err, checkpoint.ErrExecutionNotFound) {
			return nil, err
		}

		return nil, checkpoint.NewStoreError("LoadExecution", executionID, "", err)
	}

	return state, nil
}

// UpdateExecution persists the current execution state, replacing any prior
// version.
func (s *Store) UpdateExecution(_ context.Context, state *models.ExecutionState) error {
	if err := validateKey(state.ID); err != nil {
		return checkpoint.NewStoreError("UpdateExecution", state.ID, "", err)
	}

	err := s.writeJSON(s.executionPath(state.ID), state)
	if err != nil {
		return checkpoint.NewStoreError("UpdateExecution", state.ID, "", err)
	}

	return nil
}

// SaveResult persists a unit checkpoint. Last write wins.
func (s *Store) SaveResult(_ context.Context, cp *models.Checkpoint) error {
	if err := validateKey(cp.ExecutionID); err != nil {
		return checkpoint.NewStoreError("SaveResult", cp.ExecutionID, cp.UnitName, err)
	}

	if err := validateKey(cp.UnitName); err != nil {
		return checkpoint.NewStoreError("SaveResult", cp.ExecutionID, cp.UnitName, err)
	}

	err := s.writeJSON(s.checkpointPath(cp.ExecutionID, cp.UnitName), cp)
	if err != nil {
		return checkpoint.NewStoreError("SaveResult", cp.ExecutionID, cp.UnitName, err)
	}

	return nil
}

// LoadResult loads a unit checkpoint.
func (s *Store) LoadResult(_ context.Context, executionID, unitName string) (*models.Checkpoint, error) {
	if err := validateKey(executionID); err != nil {
		return nil, checkpoint.NewStoreError("LoadResult", executionID, unitName, err)
	}

	if err := validateKey(unitName); err != nil {
		return nil, checkpoint.NewStoreError("LoadResult", executionID, unitName, err)
	}

	cp := &models.Checkpoint{}

	err := s.readJSON(s.checkpointPath(executionID, unitName), cp, checkpoint.ErrCheckpointNotFound)
	if err != nil {
		if errors.Is(err, checkpoint.ErrCheckpointNotFound) {
			return nil, err
		}

		return nil, checkpoint.NewStoreError("LoadResult", executionID, unitName, err)
	}

	return cp, nil
}

// IsCompleted reports whether a checkpoint exists without reading its payload.
func (s *Store) IsCompleted(_ context.Context, executionID, unitName string) (bool, error) {
	if err := validateKey(executionID); err != nil {
		return false, checkpoint.NewStoreError("IsCompleted", executionID, unitName, err)
	}

	if err := validateKey(unitName); err != nil {
		return false, checkpoint.NewStoreError("IsCompleted", executionID, unitName, err)
	}

	_, err := os.Stat(s.checkpointPath(executionID, unitName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, checkpoint.NewStoreError("IsCompleted", executionID, unitName, err)
	}

	return true, nil
}

// SaveReport persists the final report for an execution.
func (s *Store) SaveReport(_ context.Context, report *models.FinalReport) error {
	if err := validateKey(report.ExecutionID); err != nil {
		return checkpoint.NewStoreError("SaveReport", report.ExecutionID, "", err)
	}

	err := s.writeJSON(s.reportPath(report.ExecutionID), report)
	if err != nil {
		return checkpoint.NewStoreError("SaveReport", report.ExecutionID, "", err)
	}

	return nil
}

// LoadReport loads the final report for an execution.
func (s *Store) LoadReport(_ context.Context, executionID string) (*models.FinalReport, error) {
	if err := validateKey(executionID); err != nil {
		return nil, checkpoint.NewStoreError("LoadReport", executionID, "", err)
	}

	report := &models.FinalReport{}

	err := s.readJSON(s.reportPath(executionID), report, checkpoint.ErrReportNotFound)
	if err != nil {
		if errors.Is(err, checkpoint.ErrReportNotFound) {
			return nil, err
		}

		return nil, checkpoint.NewStoreError("LoadReport", executionID, "", err)
	}

	return report, nil
}

// HealthCheck verifies the root directory is usable, creating it on first use.
func (s *Store) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(s.root, 0750)
	if err != nil {
		return fmt.Errorf("checkpoint root %s is not writable: %w", s.root, err)
	}

	return nil
}

// Close is a no-op for the file store.
func (s *Store) Close(_ context.Context) error {
	return nil
}
