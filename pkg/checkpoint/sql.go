package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Montabos/Projet/pkg/repository"
	"github.com/Montabos/Projet/pkg/state"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name       string
	insertSeed string
	selectLock string
	selectOne  string
	update     string
	list       string
	delete     string
}

// newDialect renders the runs statements for a backend. cast is appended to
// JSON values and lock to the row-locking select.
func newDialect(name string, p repository.Placeholder, cast, lock string) dialect {
	const columns = "data, checkpoint_node, created_at, updated_at"
	bind := func(q string) string { return repository.Rebind(p, q) }

	return dialect{
		name: name,
		insertSeed: bind("INSERT INTO runs (run_id, " + columns + ") VALUES (?, '{}'" + cast +
			", '', ?, ?) ON CONFLICT (run_id) DO NOTHING"),
		selectLock: bind("SELECT " + columns + " FROM runs WHERE run_id = ?" + lock),
		selectOne:  bind("SELECT " + columns + " FROM runs WHERE run_id = ?"),
		update:     bind("UPDATE runs SET data = ?" + cast + ", checkpoint_node = ?, updated_at = ? WHERE run_id = ?"),
		list:       "SELECT run_id, checkpoint_node, created_at, updated_at FROM runs ORDER BY updated_at DESC, run_id",
		delete:     bind("DELETE FROM runs WHERE run_id = ?"),
	}
}

// SQL is a Store backed by a database/sql connection. Merge runs inside a
// transaction that seeds the row, locks it, and rewrites its values, so
// concurrent merges into one run serialize on the row.
type SQL struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

func newSQL(db *sql.DB, d dialect, logger *slog.Logger) *SQL {
	return &SQL{
		db:      db,
		dialect: d,
		logger:  logger.With("system", "checkpoint", "backend", d.name),
	}
}

func (s *SQL) Backend() string { return s.dialect.name }

func (s *SQL) Durable() bool { return true }

// DB exposes the underlying pool.
func (s *SQL) DB() *sql.DB { return s.db }

type row struct {
	data      []byte
	node      string
	createdAt int64
	updatedAt int64
}

func scanRow(sc repository.Scanner) (row, error) {
	var r row
	err := sc.Scan(&r.data, &r.node, &r.createdAt, &r.updatedAt)
	return r, err
}

func (r row) toState(runID string) (state.State, error) {
	data, err := state.DecodeData(r.data)
	if err != nil {
		return state.State{}, err
	}
	return state.State{
		Data:           data,
		RunID:          runID,
		CheckpointNode: r.node,
		Timestamp:      time.UnixMilli(r.updatedAt).UTC(),
	}, nil
}

func (s *SQL) Load(ctx context.Context, runID string) (state.State, error) {
	r, err := repository.QueryOne(ctx, s.db, scanRow, s.dialect.selectOne, runID)
	if err != nil {
		return state.State{}, repository.MapError(err, state.ErrRunNotFound)
	}
	return r.toState(runID)
}

func (s *SQL) Merge(ctx context.Context, runID string, update state.Update, node string) (state.State, error) {
	if err := validateRunID(runID); err != nil {
		return state.State{}, err
	}

	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) (state.State, error) {
		now := time.Now().UTC().UnixMilli()

		if _, err := repository.Exec(ctx, tx, s.dialect.insertSeed, runID, now, now); err != nil {
			return state.State{}, fmt.Errorf("seed run %s: %w", runID, err)
		}

		current, err := repository.QueryOne(ctx, tx, scanRow, s.dialect.selectLock, runID)
		if err != nil {
			return state.State{}, fmt.Errorf("lock run %s: %w", runID, err)
		}

		data, err := mergeData(current.data, update)
		if err != nil {
			return state.State{}, err
		}

		checkpointNode := current.node
		if node != "" {
			checkpointNode = node
		}

		if err := repository.ExecExpectOne(ctx, tx, s.dialect.update, string(data), checkpointNode, now, runID); err != nil {
			return state.State{}, fmt.Errorf("update run %s: %w", runID, err)
		}

		merged := row{data: data, node: checkpointNode, createdAt: current.createdAt, updatedAt: now}
		return merged.toState(runID)
	})
}

func (s *SQL) List(ctx context.Context) ([]state.Summary, error) {
	return repository.QueryMany(ctx, s.db, func(sc repository.Scanner) (state.Summary, error) {
		var (
			sum                  state.Summary
			createdAt, updatedAt int64
		)
		if err := sc.Scan(&sum.RunID, &sum.CheckpointNode, &createdAt, &updatedAt); err != nil {
			return sum, err
		}
		sum.CreatedAt = time.UnixMilli(createdAt).UTC()
		sum.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		return sum, nil
	}, s.dialect.list)
}

func (s *SQL) Delete(ctx context.Context, runID string) error {
	err := repository.ExecExpectOne(ctx, s.db, s.dialect.delete, runID)
	return repository.MapError(err, state.ErrRunNotFound)
}

func (s *SQL) Close() error {
	s.logger.Info("closing checkpoint store")
	return s.db.Close()
}
