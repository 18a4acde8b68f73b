package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/internal/infrastructure"
	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/checkpoint"
)

type options struct {
	configPath string
	logLevel   string
}

// app is the infrastructure a command runs against.
type app struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
	out   io.Writer
}

func (a *app) workflow() *workflow.Workflow {
	return a.infra.Workflow
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func openApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	logger := infrastructure.NewLogger(cfg)

	infra, err := infrastructure.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	infra.Prepare(ctx)

	return &app{cfg: cfg, infra: infra, out: out}, nil
}

func (a *app) Close() error {
	return a.infra.Close()
}

// withApp loads configuration, opens the infrastructure for the duration
// of fn, and closes it afterwards.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	return errors.Join(fn(ctx, a), a.Close())
}

// removeStore deletes the SQLite run store file. Other backends are left
// untouched.
func removeStore(cfg *checkpoint.Config) (bool, error) {
	if cfg.Backend != checkpoint.BackendSQLite || cfg.Path == "" {
		return false, nil
	}
	if err := os.Remove(cfg.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove run store: %w", err)
	}
	return true, nil
}
