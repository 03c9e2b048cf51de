package list

import (
	"context"
	"fmt"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/storage"
)

// ServiceConfig is the configuration for the list service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the installed items of a game mode.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	ModeID string
	// OutdatedOnly only returns the items recorded with an old format, the ones the next
	// startup will upgrade.
	OutdatedOnly bool
}

// Run lists the installed items of a game mode.
func (s *Service) Run(ctx context.Context, req Request) ([]model.InstalledItem, error) {
	s.logger.Debugf("listing installed items of %s (outdated only: %v)", req.ModeID, req.OutdatedOnly)

	mode := model.GameMode{ID: req.ModeID, Name: req.ModeID}
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game mode: %w", err)
	}

	items, err := s.repo.ListInstalledItems(ctx, req.ModeID)
	if err != nil {
		return nil, fmt.Errorf("could not list installed items: %w", err)
	}

	if req.OutdatedOnly {
		filtered := make([]model.InstalledItem, 0, len(items))
		for _, it := range items {
			if it.FormatVersion < model.CurrentInstallFormatVersion {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	s.logger.Debugf("found %d installed items", len(items))
	return items, nil
}
