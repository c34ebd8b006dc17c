package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/checkpoint/file"
	"github.com/costray/costray/pkg/checkpoint/postgresql"
	"github.com/costray/costray/pkg/checkpoint/redis"
)

// NewCheckpointStore builds a store from a database URL, dispatching on the
// scheme. Anything without a recognized scheme is treated as a file path.
func NewCheckpointStore(ctx context.Context, logger *slog.Logger, databaseURL string) checkpoint.Store {
	switch {
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		store, err := redis.NewStore(ctx, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create redis checkpoint store: %w", err))
		}

		return store
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgresql checkpoint store: %w", err))
		}

		return store
	default:
		return file.NewStore(databaseURL)
	}
}
