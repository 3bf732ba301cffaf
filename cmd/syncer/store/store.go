// Package store builds the syncer's storage backend from its Config.
//
// Backends:
//
//   - memory: process-local, lost on exit. Useful for dry runs.
//   - redis: shared and durable; the production backend.
//   - badger: embedded and durable, for single-host deployments.
//
// New verifies connectivity before returning so that a misconfigured
// backend fails the process at startup rather than in the middle of a run.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/sensorsync/cmd/syncer/config"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

const pingTimeout = 5 * time.Second

// New opens and health-checks the configured backend.
func New(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var (
		s   storage.Store
		err error
	)

	switch cfg.Storage {
	case "redis":
		logger.Info("initializing redis storage",
			"addr", cfg.RedisAddr,
			"db", cfg.RedisDB,
			"prefix", cfg.RedisPrefix,
		)
		s, err = storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	case "badger":
		logger.Info("initializing badger storage", "path", cfg.BadgerPath)
		s, err = storage.NewBadgerStore(cfg.BadgerPath)
	case "memory":
		logger.Info("initializing in-memory storage")
		s = storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("invalid storage type %q", cfg.Storage)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s health check: %w", cfg.Storage, err)
	}

	logger.Info("storage initialized", "storage", cfg.Storage)
	return s, nil
}
