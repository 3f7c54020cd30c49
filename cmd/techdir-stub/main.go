// cmd/techdir-stub/main.go
//
// Runs the in-memory technician API on the address from .techdir/config.yaml
// (stub section) until SIGINT or SIGTERM.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/staff-directory/internal/apistub"
	"github.com/kingrea/staff-directory/internal/config"
	"github.com/kingrea/staff-directory/internal/logging"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .techdir directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewStdout(cfg.LogLevel())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	srv := apistub.NewServer(apistub.SettingsFromConfig(cfg), apistub.WithLogger(logger))
	go func() {
		if err := srv.Listen(); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
