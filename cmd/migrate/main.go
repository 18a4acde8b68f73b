package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/pkg/checkpoint"
)

func main() {
	var (
		configPath = flag.String("config", config.BaseConfigFile, "Configuration file")
		dsn        = flag.String("dsn", "", "Database URL (defaults to the configured run store)")
		up         = flag.Bool("up", false, "Run all up migrations")
		down       = flag.Bool("down", false, "Run all down migrations")
		steps      = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version    = flag.Bool("version", false, "Print current migration version")
		force      = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	url, err := resolveURL(*dsn, *configPath)
	if err != nil {
		log.Fatal(err)
	}

	source, err := iofs.New(checkpoint.Migrations(), ".")
	if err != nil {
		log.Fatalf("failed to create migration source: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("failed to get version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run up migrations: %v", err)
		}
		fmt.Println("migrations applied successfully")
	case *down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run down migrations: %v", err)
		}
		fmt.Println("migrations reverted successfully")
	case *steps != 0:
		if err := m.Steps(*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run migrations: %v", err)
		}
		fmt.Printf("applied %d migration steps\n", *steps)
	default:
		fmt.Println("usage: migrate [-config file] [-dsn url] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}
}

// resolveURL prefers an explicit DSN, then the PostgreSQL settings of the
// configured run store.
func resolveURL(dsn, configPath string) (string, error) {
	if dsn != "" {
		return dsn, nil
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return "", fmt.Errorf("config load failed: %w", err)
	}
	if cfg.Store.Backend != checkpoint.BackendPostgres {
		return "", fmt.Errorf("run store backend is %q, pass -dsn to migrate a PostgreSQL database", cfg.Store.Backend)
	}
	return cfg.Store.Database.ConnString(), nil
}
