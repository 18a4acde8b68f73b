// Package api assembles the HTTP API module over the email workflow.
package api

import (
	"net/http"

	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/internal/infrastructure"
	"github.com/Montabos/Projet/internal/runs"
	"github.com/Montabos/Projet/pkg/middleware"
	"github.com/Montabos/Projet/pkg/module"
)

// NewModule creates the API module with the runs handler and middleware.
// It also returns the registered route patterns, relative to the module
// prefix.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, []string, error) {
	logger := infra.Logger.With("module", "api")

	var emails runs.EmailSource
	if infra.Outbox != nil {
		emails = infra.Outbox
	}

	runsHandler := runs.NewHandler(infra.Workflow, emails, logger, cfg.API.Pagination)

	mux := http.NewServeMux()
	patterns := registerRoutes(mux, runsHandler)

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, nil, err
	}
	m.Use(
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.MaxBytes(cfg.API.MaxBodySizeBytes()),
	)

	return m, patterns, nil
}
