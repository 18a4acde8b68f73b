package api

import (
	"net/http"

	"github.com/Montabos/Projet/internal/runs"
	"github.com/Montabos/Projet/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, runsHandler *runs.Handler) []string {
	return routes.Register(
		mux,
		runsHandler.Routes(),
	)
}
