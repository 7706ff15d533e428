package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohdear-panel/internal/panel/server"
	"github.com/ohdear-panel/pkg/config"
	"github.com/ohdear-panel/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("ohdear-panel")
	if err != nil {
		logger.NewDefault().Fatal("Failed to load configuration", "error", err)
	}

	// Initialize logger
	log := logger.New(cfg.Logger.ToLoggerConfig())

	// Create and start server
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to create server", "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Oh Dear panel...")

	// Graceful shutdown with timeout
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Oh Dear panel exited")
}
