package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/internal/infrastructure"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}

	logger := infrastructure.NewLogger(cfg)
	logger.Info(
		"mailflow starting",
		"version", cfg.Version,
		"addr", cfg.Server.Addr(),
		"env", cfg.Env(),
	)

	if err := agent.Listen(agent.Options{}); err != nil {
		logger.Warn("diagnostics agent not started", "error", err)
	} else {
		defer agent.Close()
	}

	srv, err := NewServer(cfg, logger)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server start failed", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := srv.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		os.Exit(1)
	}

	logger.Info("mailflow stopped")
}
