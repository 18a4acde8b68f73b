package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Montabos/Projet/pkg/repository"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

var sqliteDialect = newDialect(BackendSQLite, repository.Question, "", "")

// OpenSQLite opens (creating if needed) a SQLite database file and applies
// the runs schema. The pool is limited to one connection, which serializes
// every transaction on the file.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return newSQL(db, sqliteDialect, logger), nil
}
