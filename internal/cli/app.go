// Package cli wires the drydock command-line surface: the bare command runs
// a backup, subcommands expose status, configuration and the log journal.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/polarfoxDev/drydock/internal/config"
	"github.com/polarfoxDev/drydock/internal/history"
	"github.com/polarfoxDev/drydock/internal/logging"
	"github.com/polarfoxDev/drydock/internal/orchestrator"
)

// JournalFile is the sqlite database holding run history and log entries,
// relative to the backup root.
const JournalFile = "drydock.db"

// app holds the shared wiring behind every subcommand.
type app struct {
	env    config.Environment
	store  *config.Store
	hist   *history.DB
	logger *logging.Logger
}

func newApp(console io.Writer) (*app, error) {
	env := config.LoadEnvironment()
	if err := os.MkdirAll(env.BackupRoot(), 0o750); err != nil {
		return nil, fmt.Errorf("create backup root: %w", err)
	}
	hist, err := history.Open(filepath.Join(env.BackupRoot(), JournalFile))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &app{
		env:    env,
		store:  config.NewStore(env.BackupRoot()),
		hist:   hist,
		logger: logging.New(hist.Handle(), console),
	}, nil
}

func (a *app) close() {
	if a.hist != nil {
		a.hist.Close()
	}
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Env:     a.env,
		Store:   a.store,
		Logger:  a.logger,
		History: a.hist,
	})
}
