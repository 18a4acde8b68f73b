package checkpoint

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/Montabos/Projet/pkg/database"
)

// Backend names accepted by Config.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var backends = []string{BackendSQLite, BackendPostgres, BackendMemory}

// Config selects and configures the durable run store.
type Config struct {
	Backend     string          `toml:"backend"`
	Path        string          `toml:"path"`
	AutoMigrate *bool           `toml:"auto_migrate"`
	Database    database.Config `toml:"database"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend     string
	Path        string
	AutoMigrate string
	Database    *database.Env
}

// Migrate reports whether PostgreSQL migrations run on open.
func (c *Config) Migrate() bool {
	return c.AutoMigrate == nil || *c.AutoMigrate
}

// Finalize applies defaults, environment variable overrides, and validation.
// The database block is finalized only for the postgres backend.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if err := c.validate(); err != nil {
		return err
	}

	if c.Backend == BackendPostgres {
		var dbEnv *database.Env
		if env != nil {
			dbEnv = env.Database
		}
		if err := c.Database.Finalize(dbEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.AutoMigrate != nil {
		c.AutoMigrate = overlay.AutoMigrate
	}
	c.Database.Merge(&overlay.Database)
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Path == "" {
		c.Path = "mailflow.db"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.Path != "" {
		if v := os.Getenv(env.Path); v != "" {
			c.Path = v
		}
	}
	if env.AutoMigrate != "" {
		if v := os.Getenv(env.AutoMigrate); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.AutoMigrate = &b
			}
		}
	}
}

func (c *Config) validate() error {
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	return nil
}
