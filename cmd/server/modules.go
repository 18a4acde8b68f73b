package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Montabos/Projet/internal/api"
	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/internal/infrastructure"
	"github.com/Montabos/Projet/pkg/module"
)

// Modules holds the HTTP modules mounted by the server.
type Modules struct {
	API      *module.Module
	Patterns []string
}

// NewModules builds every HTTP module.
func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, patterns, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API:      apiModule,
		Patterns: patterns,
	}, nil
}

// Mount attaches every module to router.
func (m *Modules) Mount(router *module.Router) error {
	return router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ready",
			"store":  infra.Store.Backend(),
			"checks": infra.Lifecycle.Checks(),
		})
	})

	router.Handle("GET /metrics", promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{}))

	return router
}
