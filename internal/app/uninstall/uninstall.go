package uninstall

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/instance"
	"github.com/slok/modkeeper/internal/lock"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/pipeline"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/storage"
	"github.com/slok/modkeeper/internal/task"
)

// Settings is the settings store.
type Settings interface {
	Update(ctx context.Context, mutate func(s *settings.Settings) error) error
}

// ServiceConfig is the configuration for the uninstall service.
type ServiceConfig struct {
	DataDir    string
	AppName    string
	Settings   Settings
	Repository storage.Repository
	Journal    task.Journal
	// Locker makes sure the game mode isn't running while its data is removed.
	Locker instance.Locker
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.AppName == "" {
		c.AppName = conventions.AppName
	}

	if c.Settings == nil {
		return fmt.Errorf("settings is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Journal == nil {
		c.Journal = task.NoopJournal
	}

	if c.Locker == nil {
		return fmt.Errorf("locker is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "uninstall.Service"})

	return nil
}

// Service removes everything the application stored for a game mode.
type Service struct {
	dataDir  string
	appName  string
	settings Settings
	repo     storage.Repository
	journal  task.Journal
	locker   instance.Locker
	logger   log.Logger
}

// NewService creates a new uninstall service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		dataDir:  cfg.DataDir,
		appName:  cfg.AppName,
		settings: cfg.Settings,
		repo:     cfg.Repository,
		journal:  cfg.Journal,
		locker:   cfg.Locker,
		logger:   cfg.Logger,
	}, nil
}

// Run removes the data directory, settings, installed items and journal of a game mode.
// It fails if the game mode is running.
func (s *Service) Run(ctx context.Context, modeID string) error {
	mode := model.GameMode{ID: modeID, Name: modeID}
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("invalid game mode: %w", err)
	}

	lk, err := s.locker.TryAcquire(conventions.LockName(s.appName, modeID))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return fmt.Errorf("game mode %s is running, close it first: %w", modeID, model.ErrInvalidState)
		}
		return fmt.Errorf("could not lock game mode: %w", err)
	}
	defer func() {
		if err := lk.Release(); err != nil {
			s.logger.Warningf("Could not release game mode lock: %s", err)
		}
	}()

	dir := conventions.ModeDir(s.dataDir, modeID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("could not remove %s: %w", dir, err)
	}

	if err := s.repo.DeleteModeItems(ctx, modeID); err != nil {
		return fmt.Errorf("could not delete installed items: %w", err)
	}

	if err := s.journal.ClearOperation(ctx, modeID, pipeline.JournalOperation); err != nil {
		return fmt.Errorf("could not clear the journal: %w", err)
	}

	err = s.settings.Update(ctx, func(st *settings.Settings) error {
		delete(st.Modes, modeID)
		if st.DefaultMode == modeID {
			st.DefaultMode = ""
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not update settings: %w", err)
	}

	s.logger.Infof("Game mode %s uninstalled", modeID)
	return nil
}
