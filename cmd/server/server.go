package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/internal/infrastructure"
)

// Server owns the shared infrastructure, the mounted modules, and the HTTP
// listener.
type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

// NewServer assembles infrastructure and modules from cfg.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	infra, err := infrastructure.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		infra.Close()
		return nil, err
	}

	router := buildRouter(infra)
	if err := modules.Mount(router); err != nil {
		infra.Close()
		return nil, err
	}

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"store", infra.Store.Backend(),
		"modules", router.Prefixes(),
		"routes", len(modules.Patterns),
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start registers every subsystem with the lifecycle coordinator and begins
// serving.
func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

// Shutdown cancels the lifecycle and waits up to timeout for every shutdown
// hook.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
