// Package redis provides a Redis backed checkpoint store. Checkpoints and
// execution state are stored as JSON strings under a flat key scheme, which
// gives idempotent writes (SET replaces) and cheap existence checks (EXISTS)
// without reading payloads.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/models"
)

// Store implements checkpoint.Store on Redis.
type Store struct {
	client redis.UniversalClient
}

// NewStore connects to Redis using a redis:// URL.
func NewStore(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests.
func NewStoreWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func executionKey(executionID string) string {
	return "costray:execution:" + executionID
}

func checkpointKey(executionID, unitName string) string {
	return "costray:checkpoint:" + executionID + ":" + unitName
}

func reportKey(executionID string) string {
	return "costray:report:" + executionID
}

func (s *Store) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = s.client.Set(ctx, key, data, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, value any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}

		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal key %s: %w", key, err)
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
func (s *Store) LoadExecution(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	state := &models.ExecutionState{}

	err := s.getJSON(ctx, executionKey(executionID), state, checkpoint.ErrExecutionNotFound)
	if err != nil {
		if errors.Is(err, checkpoint.ErrExecutionNotFound) {
			return nil, err
		}

		return nil, checkpoint.NewStoreError("LoadExecution", executionID, "", err)
	}

	return state, nil
}

// UpdateExecution persists the execution state, replacing any prior version.
func (s *Store) UpdateExecution(ctx context.Context, state *models.ExecutionState) error {
	err := s.setJSON(ctx, executionKey(state.ID), state)
	if err != nil {
		return checkpoint.NewStoreError("UpdateExecution", state.ID, "", err)
	}

	return nil
}

// SaveResult persists a unit checkpoint. Last write wins.
func (s *Store) SaveResult(ctx context.Context, cp *models.Checkpoint) error {
	err := s.setJSON(ctx, checkpointKey(cp.ExecutionID, cp.UnitName), cp)
	if err != nil {
		return checkpoint.NewStoreError("SaveResult", cp.ExecutionID, cp.UnitName, err)
	}

	return nil
}

// LoadResult loads a unit checkpoint.
func (s *Store) LoadResult(ctx context.Context, executionID, unitName string) (*models.Checkpoint, error) {
	cp := &models.Checkpoint{}

	err := s.getJSON(ctx, checkpointKey(executionID, unitName), cp, checkpoint.ErrCheckpointNotFound)
	if err != nil {
		if errors.Is(err, checkpoint.ErrCheckpointNotFound) {
			return nil, err
		}

		return nil, checkpoint.NewStoreError("LoadResult", executionID, unitName, err)
	}

	return cp, nil
}

// IsCompleted reports whether a checkpoint exists without reading it.
func (s *Store) IsCompleted(ctx context.Context, executionID, unitName string) (bool, error) {
	count, err := s.client.Exists(ctx, checkpointKey(executionID, unitName)).Result()
	if err != nil {
		return false, checkpoint.NewStoreError("IsCompleted", executionID, unitName, err)
	}

	return count > 0, nil
}

// SaveReport persists the final report for an execution.
func (s *Store) SaveReport(ctx context.Context, report *models.FinalReport) error {
	err := s.setJSON(ctx, reportKey(report.ExecutionID), report)
	if err != nil {
		return checkpoint.NewStoreError("SaveReport", report.ExecutionID, "", err)
	}

	return nil
}

// LoadReport loads the final report for an execution.
func (s *Store) LoadReport(ctx context.Context, executionID string) (*models.FinalReport, error) {
	report := &models.FinalReport{}

	err := s.getJSON(ctx, reportKey(executionID), report, checkpoint.ErrReportNotFound)
	if err != nil {
		if errors.Is(err, checkpoint.ErrReportNotFound) {
			return nil, err
		}

		return nil, checkpoint.NewStoreError("LoadReport", executionID, "", err)
	}

	return report, nil
}

// HealthCheck pings the Redis server.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close(_ context.Context) error {
	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
