// Package checkpoint provides the run stores behind the workflow engine:
// an in-process store, a SQLite file store, and a PostgreSQL store. Open
// selects one at startup and falls back to the in-process store when the
// durable backend cannot be reached.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Montabos/Projet/pkg/state"
)

// Store is a state.Store that reports which backend serves it.
type Store interface {
	state.Store
	// Backend returns "sqlite", "postgres" or "memory".
	Backend() string
	// Durable reports whether runs survive a process restart.
	Durable() bool
}

// Open returns the store selected by cfg. When a durable backend fails to
// open, a warning is logged and an in-memory store is returned instead; the
// error is non-nil only for an invalid configuration.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (Store, error) {
	log := logger.With("system", "checkpoint")

	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case BackendMemory:
		log.Info("checkpoint store ready", "backend", BackendMemory)
		return NewMemory(), nil
	case BackendSQLite:
		store, err = OpenSQLite(ctx, cfg.Path, logger)
	case BackendPostgres:
		store, err = OpenPostgres(ctx, &cfg.Database, cfg.Migrate(), logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if err != nil {
		log.Warn(
			"durable checkpoint store unavailable, runs will not survive restart",
			"backend", cfg.Backend,
			"error", err,
		)
		return NewMemory(), nil
	}

	log.Info("checkpoint store ready", "backend", store.Backend())
	return store, nil
}

// With opens a store, passes it to fn, and closes it on every exit path.
// The close error is joined with fn's error.
func With(ctx context.Context, cfg *Config, logger *slog.Logger, fn func(Store) error) (err error) {
	store, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	return fn(store)
}
