package checkpoint

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/Montabos/Projet/pkg/database"
	"github.com/Montabos/Projet/pkg/repository"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

var postgresDialect = newDialect(BackendPostgres, repository.Dollar, "::jsonb", " FOR UPDATE")

// Migrations returns the embedded PostgreSQL migration files rooted at
// their directory, suitable for iofs.New(fsys, ".").
func Migrations() fs.FS {
	sub, err := fs.Sub(postgresMigrations, "migrations/postgres")
	if err != nil {
		panic(err)
	}
	return sub
}

// OpenPostgres connects to PostgreSQL, verifies the connection, and applies
// pending migrations when migrateUp is set.
func OpenPostgres(ctx context.Context, cfg *database.Config, migrateUp bool, logger *slog.Logger) (*SQL, error) {
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Connection().Close()
		return nil, err
	}

	if migrateUp {
		if err := MigrateUp(cfg.ConnString()); err != nil {
			db.Connection().Close()
			return nil, err
		}
	}

	return newSQL(db.Connection(), postgresDialect, logger), nil
}

// MigrateUp applies every pending migration to the database at url.
func MigrateUp(url string) error {
	source, err := iofs.New(Migrations(), ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
