// Package startup drives a launch: it selects the game mode, claims it, runs the
// initialization and keeps the live instance serving until the context ends.
package startup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/modkeeper/internal/instance"
	"github.com/slok/modkeeper/internal/ipc"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/pipeline"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/ui"
)

// Outcome is how a launch ended.
type Outcome string

const (
	// OutcomeServed is a launch that owned its game mode until it was stopped.
	OutcomeServed Outcome = "served"
	// OutcomeForwarded is a launch that handed its intent to the live instance.
	OutcomeForwarded Outcome = "forwarded"
	// OutcomeCancelled is a launch the user abandoned.
	OutcomeCancelled Outcome = "cancelled"
)

// Registry has the supported game modes.
type Registry interface {
	Get(modeID string) (model.Descriptor, error)
	List() []model.Descriptor
}

// Settings is the settings store used to remember the mode selection.
type Settings interface {
	Get() settings.Settings
	Update(ctx context.Context, mutate func(s *settings.Settings) error) error
	UpdateMode(ctx context.Context, modeID string, mutate func(m *settings.ModeSettings)) error
}

// Shell is the main surface, it also receives the commands of other launches.
type Shell interface {
	ipc.Sink
	SelectMode(ctx context.Context, ds []model.Descriptor) (string, error)
	ShowMessage(ctx context.Context, level ui.MessageLevel, title, msg string) error
	SetMode(modeID string) (dropped int)
	Unready()
}

// Coordinator claims game modes.
type Coordinator interface {
	Claim(ctx context.Context, mode model.GameMode, intent model.Intent) (*instance.Claim, error)
}

// Pipeline initializes a game mode.
type Pipeline interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// PipelineFactory returns the initialization of a game mode.
type PipelineFactory func(d model.Descriptor) (Pipeline, error)

// ServiceConfig is the configuration of the startup service.
type ServiceConfig struct {
	Registry    Registry
	Settings    Settings
	Shell       Shell
	Coordinator Coordinator
	Pipelines   PipelineFactory
	// TracePath is shown to the user on fatal errors.
	TracePath string
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings is required")
	}
	if c.Shell == nil {
		return fmt.Errorf("shell is required")
	}
	if c.Coordinator == nil {
		return fmt.Errorf("coordinator is required")
	}
	if c.Pipelines == nil {
		return fmt.Errorf("pipeline factory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "startup.Service"})
	return nil
}

// Service runs a launch.
type Service struct {
	registry    Registry
	settings    Settings
	shell       Shell
	coordinator Coordinator
	pipelines   PipelineFactory
	tracePath   string
	logger      log.Logger
}

// NewService returns a new startup service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry:    cfg.Registry,
		settings:    cfg.Settings,
		shell:       cfg.Shell,
		coordinator: cfg.Coordinator,
		pipelines:   cfg.Pipelines,
		tracePath:   cfg.TracePath,
		logger:      cfg.Logger,
	}, nil
}

// Run runs the launch intent. An owner launch keeps serving until ctx is done. Asking to
// change the game mode or to rescan the installation restarts the selection. User
// cancellations are not errors.
func (s *Service) Run(ctx context.Context, intent model.Intent) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
			s.logger.Errorf("Startup panicked: %v", r)
			s.reportFatal(ctx, err)
		}
	}()

	forceSelect := false
	for {
		d, err := s.selectMode(ctx, intent, forceSelect)
		if err != nil {
			kind := pipeline.Classify(err)
			if kind == pipeline.KindUserCancelled {
				return OutcomeCancelled, nil
			}
			s.report(ctx, kind, err)
			return "", err
		}
		forceSelect = false

		outcome, kind, err := s.runMode(ctx, d, intent)
		switch kind {
		case pipeline.KindChangeMode:
			s.logger.Infof("Game mode change requested")
			if err := s.forgetDefaultMode(ctx); err != nil {
				s.reportFatal(ctx, err)
				return "", err
			}
			intent.ModeID = ""
			forceSelect = true
			continue
		case pipeline.KindRescan:
			s.logger.Infof("Installation rescan requested")
			if err := s.settings.UpdateMode(ctx, d.Mode.ID, func(m *settings.ModeSettings) { m.InstallPath = "" }); err != nil {
				s.reportFatal(ctx, err)
				return "", err
			}
			intent.ModeID = d.Mode.ID
			continue
		}

		return outcome, err
	}
}

// selectMode returns the mode of the intent, or the default one, or asks the user.
func (s *Service) selectMode(ctx context.Context, intent model.Intent, force bool) (model.Descriptor, error) {
	modeID := ""
	if !force {
		modeID = intent.ResolveModeID()
		if modeID == "" {
			modeID = s.settings.Get().DefaultMode
		}
	}

	if modeID == "" {
		selected, err := s.shell.SelectMode(ctx, s.registry.List())
		if err != nil {
			return model.Descriptor{}, err
		}
		modeID = strings.ToLower(selected)

		err = s.settings.Update(ctx, func(st *settings.Settings) error {
			st.DefaultMode = modeID
			return nil
		})
		if err != nil {
			return model.Descriptor{}, fmt.Errorf("could not remember the game mode: %w", err)
		}
	}

	d, err := s.registry.Get(modeID)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("unknown game mode %q: %w", modeID, errors.Join(model.ErrConfiguration, err))
	}
	return d, nil
}

func (s *Service) forgetDefaultMode(ctx context.Context) error {
	return s.settings.Update(ctx, func(st *settings.Settings) error {
		st.DefaultMode = ""
		return nil
	})
}

// runMode claims and initializes a game mode. The returned kind is KindNone unless the
// initialization failed.
func (s *Service) runMode(ctx context.Context, d model.Descriptor, intent model.Intent) (Outcome, pipeline.Kind, error) {
	logger := s.logger.WithValues(log.Kv{"mode": d.Mode.ID})

	claim, err := s.coordinator.Claim(ctx, d.Mode, intent)
	if err != nil {
		kind := pipeline.Classify(err)
		if kind == pipeline.KindUserCancelled || ctx.Err() != nil {
			return OutcomeCancelled, kind, nil
		}
		s.reportFatal(ctx, err)
		return "", kind, fmt.Errorf("could not claim game mode: %w", err)
	}
	if claim.Role() == instance.RoleForwarded {
		return OutcomeForwarded, pipeline.KindNone, nil
	}
	defer func() {
		s.shell.Unready()
		if err := claim.Release(); err != nil {
			logger.Warningf("Could not release the game mode claim: %s", err)
		}
	}()

	// Items queued by a previous selection for another game mode can't be served here.
	s.shell.SetMode(d.Mode.ID)

	// Other launches can queue commands while this one initializes.
	listenCtx, stopListen := context.WithCancel(ctx)
	defer stopListen()
	listenErr := make(chan error, 1)
	go func() { listenErr <- claim.Listen(listenCtx, s.shell) }()
	select {
	case <-claim.Listening():
	case err := <-listenErr:
		s.reportFatal(ctx, err)
		return "", pipeline.Classify(err), fmt.Errorf("could not listen to other launches: %w", err)
	case <-ctx.Done():
		return OutcomeCancelled, pipeline.KindUserCancelled, nil
	}

	// Queued once, a restarted selection of the same mode finds it already queued.
	if intent.Item != nil && intent.Item.ModeID == d.Mode.ID {
		if err := s.shell.Execute(ctx, model.AddItemCommand(intent.Item.Raw)); err != nil {
			logger.Warningf("Could not queue %s: %s", intent.Item.Raw, err)
		}
	}

	p, err := s.pipelines(d)
	if err != nil {
		s.reportFatal(ctx, err)
		return "", pipeline.KindFatal, fmt.Errorf("could not create the initialization: %w", err)
	}

	res, err := p.Run(ctx)
	if err != nil {
		kind := pipeline.Classify(err)
		switch {
		case kind.IsLoopBack():
			return "", kind, nil
		case kind.IsSilent() || ctx.Err() != nil:
			logger.Infof("Initialization cancelled")
			return OutcomeCancelled, pipeline.KindUserCancelled, nil
		}
		s.report(ctx, kind, err)
		return "", kind, fmt.Errorf("could not initialize %s: %w", d.Mode.Name, err)
	}
	defer closeServices(res, logger)

	logger.Infof("%s ready, %d pending requests processed", d.Mode.Name, res.Flushed)
	if res.Interrupted != "" {
		msg := fmt.Sprintf("The previous start was interrupted at %q, the installed items were checked again.", res.Interrupted)
		if err := s.shell.ShowMessage(ctx, ui.MessageWarning, d.Mode.Name, msg); err != nil {
			logger.Warningf("Could not show the interrupted start message: %s", err)
		}
	}

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			s.reportFatal(ctx, err)
			return "", pipeline.KindFatal, fmt.Errorf("stopped listening to other launches: %w", err)
		}
	}
	logger.Infof("Shutting down %s", d.Mode.Name)

	return OutcomeServed, pipeline.KindNone, nil
}

func closeServices(res *pipeline.Result, logger log.Logger) {
	if res.Services == nil || res.Services.Close == nil {
		return
	}
	if err := res.Services.Close(); err != nil {
		logger.Warningf("Could not close services: %s", err)
	}
}

func (s *Service) reportFatal(ctx context.Context, err error) {
	s.report(ctx, pipeline.KindFatal, err)
}

// report shows the error to the user, it's only logged when the UI is gone.
func (s *Service) report(ctx context.Context, kind pipeline.Kind, err error) {
	s.logger.Errorf("%s: %s", kind.Title(), err)

	msg := err.Error()
	if kind == pipeline.KindFatal && s.tracePath != "" {
		msg = fmt.Sprintf("%s\n\nThe diagnostic trace is in %s", msg, s.tracePath)
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if serr := s.shell.ShowMessage(ctx, ui.MessageError, kind.Title(), msg); serr != nil {
		s.logger.Warningf("Could not show the error: %s", serr)
	}
}
