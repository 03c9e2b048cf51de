package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/lock"
	"github.com/slok/modkeeper/internal/printer"
	"github.com/slok/modkeeper/internal/settings"
	storagesqlite "github.com/slok/modkeeper/internal/storage/sqlite"
	tasksqlite "github.com/slok/modkeeper/internal/task/sqlite"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func newSettingsStore(root *RootCommand) (*settings.Store, error) {
	store, err := settings.NewStore(settings.StoreConfig{
		Path:   conventions.SettingsPath(root.DataDir),
		Logger: root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not load settings: %w", err)
	}
	return store, nil
}

func newRepository(ctx context.Context, root *RootCommand) (*storagesqlite.Repository, error) {
	repo, err := storagesqlite.NewRepository(ctx, storagesqlite.RepositoryConfig{
		DBPath: conventions.DBPath(root.DataDir),
		Logger: root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

func newJournal(root *RootCommand, repo *storagesqlite.Repository) (*tasksqlite.Journal, error) {
	journal, err := tasksqlite.NewJournal(tasksqlite.JournalConfig{
		DB:     repo.DB(),
		Logger: root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create journal: %w", err)
	}
	return journal, nil
}

func newLocker(root *RootCommand) (*lock.Locker, error) {
	locker, err := lock.NewLocker(lock.LockerConfig{
		Dir:    filepath.Join(root.DataDir, conventions.LocksDir),
		Logger: root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create locker: %w", err)
	}
	return locker, nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}
