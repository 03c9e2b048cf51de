package status

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/storage"
)

// Registry has the supported game modes.
type Registry interface {
	Get(modeID string) (model.Descriptor, error)
	List() []model.Descriptor
}

// Settings returns the user settings.
type Settings interface {
	Get() settings.Settings
}

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	DataDir    string
	Registry   Registry
	Settings   Settings
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}

	if c.Settings == nil {
		return fmt.Errorf("settings is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service returns the local state of the game modes.
type Service struct {
	dataDir  string
	registry Registry
	settings Settings
	repo     storage.Repository
	logger   log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		dataDir:  cfg.DataDir,
		registry: cfg.Registry,
		settings: cfg.Settings,
		repo:     cfg.Repository,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	// ModeID limits the status to one game mode, empty means all of them.
	ModeID string
}

// Run returns the status of the supported game modes sorted by ID.
func (s *Service) Run(ctx context.Context, req Request) ([]model.ModeStatus, error) {
	s.logger.Debugf("getting status of game modes: %q", req.ModeID)

	ds := s.registry.List()
	if req.ModeID != "" {
		d, err := s.registry.Get(req.ModeID)
		if err != nil {
			return nil, fmt.Errorf("could not get game mode: %w", err)
		}
		ds = []model.Descriptor{d}
	}

	st := s.settings.Get()
	statuses := make([]model.ModeStatus, 0, len(ds))
	for _, d := range ds {
		ms := st.Mode(d.Mode.ID)

		size, err := dirSize(conventions.ModeDir(s.dataDir, d.Mode.ID))
		if err != nil {
			return nil, fmt.Errorf("could not get %s data size: %w", d.Mode.ID, err)
		}

		items, err := s.repo.ListInstalledItems(ctx, d.Mode.ID)
		if err != nil {
			return nil, fmt.Errorf("could not list %s installed items: %w", d.Mode.ID, err)
		}

		statuses = append(statuses, model.ModeStatus{
			Mode:           d.Mode,
			Default:        st.DefaultMode == d.Mode.ID,
			InstallPath:    ms.InstallPath,
			SetupCompleted: ms.SetupCompleted,
			DataBytes:      size,
			Items:          len(items),
		})
	}

	return statuses, nil
}

func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
