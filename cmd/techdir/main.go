// cmd/techdir/main.go
//
// This is the entry point for the staff directory.
// When you run `techdir` from any directory, this is what executes.
//
// Flow:
// 1. Initialize the .techdir folder and load its config
// 2. Open the log files and the role persistence adapter
// 3. Wire the role store, list cache and API client into the TUI

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/staff-directory/internal/api"
	"github.com/kingrea/staff-directory/internal/cache"
	"github.com/kingrea/staff-directory/internal/config"
	"github.com/kingrea/staff-directory/internal/journal"
	"github.com/kingrea/staff-directory/internal/logging"
	"github.com/kingrea/staff-directory/internal/role"
	"github.com/kingrea/staff-directory/internal/technician"
	"github.com/kingrea/staff-directory/internal/tui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup (log sync, role
// store close) happens before main exits.
func run(args []string) int {
	// The working directory is the "project" whose .techdir we use
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		return exitError
	}

	if err := config.InitDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .techdir directory: %v\n", err)
		return exitError
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitError
	}

	if handled, code := handleRoleStoreCommand(args, cfg, os.Stdout, os.Stderr); handled {
		return code
	}

	logger, err := logging.New(cfg.LogsDir(), cfg.LogLevel())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	activity, err := journal.Open(cfg.LogsDir())
	if err != nil {
		logger.Warn("activity journal disabled", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	persister, closePersister, err := role.OpenPersister(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("role store unavailable", zap.String("store", cfg.Role().Store), zap.Error(err))
		activity.Error("-", "role store %s unavailable: %v", cfg.Role().Store, err)
		fmt.Fprintf(os.Stderr, "Error opening role store: %v\n", err)
		return exitError
	}
	defer func() {
		if err := closePersister(); err != nil {
			logger.Warn("closing role store", zap.Error(err))
		}
	}()
	roles := role.NewStore(persister, role.WithLogger(logger))

	if handled, code := handleRoleCommand(args, roles, activity, os.Stdout, os.Stderr); handled {
		return code
	}

	timeout := time.Duration(cfg.API().TimeoutSeconds) * time.Second
	client := api.NewHTTPClient(cfg.API().BaseURL, api.WithTimeout(timeout), api.WithLogger(logger))
	records := cache.New[[]technician.Record](cache.WithLogger(logger), cache.WithFetchTimeout(timeout))
	defer records.Close()

	logger.Info("session opened",
		zap.String("api", cfg.API().BaseURL),
		zap.String("role_store", cfg.Role().Store),
		zap.String("role", string(roles.Role())))

	app := tui.NewApp(roles, records, client, tui.WithLogger(logger),
		tui.WithRequestTimeout(timeout),
		tui.WithJournal(activity))
	defer app.Close()

	// Run blocks until the user quits
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return exitError
	}
	return exitOK
}
