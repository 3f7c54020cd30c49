package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kingrea/staff-directory/internal/config"
	"github.com/kingrea/staff-directory/internal/journal"
	"github.com/kingrea/staff-directory/internal/role"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// handleRoleCommand serves `techdir role [name]` without starting the UI.
// It reports whether args named the command and the exit code to use;
// the caller exits so its deferred cleanup still runs.
func handleRoleCommand(args []string, store *role.Store, activity *journal.Journal, stdout, stderr io.Writer) (bool, int) {
	if len(args) < 1 || args[0] != "role" {
		return false, exitOK
	}
	if len(args) == 1 {
		fmt.Fprintln(stdout, store.Role())
		return true, exitOK
	}
	if len(args) != 2 {
		fmt.Fprintln(stderr, "Usage: techdir role [Admin|Manager|Technician]")
		return true, exitUsage
	}
	r, err := role.Parse(args[1])
	if err != nil {
		fmt.Fprintf(stderr, "Invalid role: %v\n", err)
		return true, exitUsage
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.SetRole(ctx, r); err != nil {
		activity.Error(string(r), "role switch from the command line not saved: %v", err)
		fmt.Fprintf(stderr, "Role not saved: %v\n", err)
		return true, exitError
	}
	activity.Info(string(r), "switched role from the command line")
	fmt.Fprintf(stdout, "Role set to %s\n", r)
	return true, exitOK
}

// handleRoleStoreCommand serves `techdir role-store <driver>`, which
// switches where the role is remembered. It runs before any persister is
// opened so a broken driver can be replaced.
func handleRoleStoreCommand(args []string, cfg *config.Config, stdout, stderr io.Writer) (bool, int) {
	if len(args) < 1 || args[0] != "role-store" {
		return false, exitOK
	}
	if len(args) == 1 {
		fmt.Fprintln(stdout, cfg.Role().Store)
		return true, exitOK
	}
	if len(args) != 2 {
		fmt.Fprintln(stderr, "Usage: techdir role-store [file|sqlite|redis|memory]")
		return true, exitUsage
	}
	if err := cfg.SetRoleStore(args[1]); err != nil {
		fmt.Fprintf(stderr, "Role store not changed: %v\n", err)
		return true, exitError
	}
	fmt.Fprintf(stdout, "Role store set to %s in %s\n", cfg.Role().Store, cfg.ProjectConfigPath())
	return true, exitOK
}
