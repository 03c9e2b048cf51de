// Package doctor checks that the application can really write where each game mode needs.
package doctor

import (
	"context"
	"fmt"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/writeaccess"
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

// Checker runs write access checks.
type Checker interface {
	Results(ctx context.Context, checks []writeaccess.PathCheck) []model.CheckResult
}

// ServiceConfig is the configuration for the doctor service.
type ServiceConfig struct {
	DataDir  string
	Registry Registry
	Settings Settings
	Checker  Checker
	Logger   log.Logger
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
	if c.Checker == nil {
		return fmt.Errorf("checker is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "doctor.Service"})
	return nil
}

// Service runs the write access checks of the game modes.
type Service struct {
	dataDir  string
	registry Registry
	settings Settings
	checker  Checker
	logger   log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		dataDir:  cfg.DataDir,
		registry: cfg.Registry,
		settings: cfg.Settings,
		checker:  cfg.Checker,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the doctor request parameters.
type Request struct {
	// ModeID limits the checks to one game mode, empty checks the configured ones.
	ModeID string
}

// Report has the check results of a game mode.
type Report struct {
	ModeID  string
	Results []model.CheckResult
}

// Errors returns the number of failed checks.
func (r Report) Errors() int { return r.count(model.CheckStatusError) }

// Warnings returns the number of checks with warnings.
func (r Report) Warnings() int { return r.count(model.CheckStatusWarning) }

func (r Report) count(status model.CheckStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Run checks the install path and data directories of the requested game modes. Without
// an explicit mode only the game modes with a known install path are checked.
func (s *Service) Run(ctx context.Context, req Request) ([]Report, error) {
	st := s.settings.Get()

	var ds []model.Descriptor
	if req.ModeID != "" {
		d, err := s.registry.Get(req.ModeID)
		if err != nil {
			return nil, fmt.Errorf("could not get game mode: %w", err)
		}
		ds = append(ds, d)
	} else {
		for _, d := range s.registry.List() {
			if st.Mode(d.Mode.ID).InstallPath != "" {
				ds = append(ds, d)
			}
		}
	}

	reports := make([]Report, 0, len(ds))
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var checks []writeaccess.PathCheck
		if p := st.Mode(d.Mode.ID).InstallPath; p != "" {
			checks = append(checks, writeaccess.PathCheck{ID: "install_path", Path: p})
		}
		for _, name := range []string{conventions.ModsDir, conventions.InstallInfoDir, conventions.OverwritesDir, conventions.CacheDir} {
			checks = append(checks, writeaccess.PathCheck{
				ID:   name,
				Path: conventions.ModeDataDir(s.dataDir, d.Mode.ID, name),
			})
		}

		s.logger.Debugf("Running %d checks for %s", len(checks), d.Mode.ID)
		reports = append(reports, Report{ModeID: d.Mode.ID, Results: s.checker.Results(ctx, checks)})
	}

	return reports, nil
}
