package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/task"
)

// ShellConfig is the configuration of the shell.
type ShellConfig struct {
	Loop      *Loop
	Presenter Presenter
	Logger    log.Logger
}

func (c *ShellConfig) defaults() error {
	if c.Loop == nil {
		return fmt.Errorf("loop is required")
	}
	if c.Presenter == nil {
		return fmt.Errorf("presenter is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ui.Shell"})
	return nil
}

// Shell is the main surface of the application. Every interaction runs on the UI loop
// regardless of the calling goroutine.
//
// It is also the command sink of the live instance: commands received before Ready are
// queued and executed in arrival order once ready.
type Shell struct {
	loop      *Loop
	presenter Presenter
	logger    log.Logger

	mu        sync.Mutex
	ready     bool
	modeID    string
	queue     []model.Command
	downloads Downloads
}

// NewShell returns a new shell.
func NewShell(cfg ShellConfig) (*Shell, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Shell{
		loop:      cfg.Loop,
		presenter: cfg.Presenter,
		logger:    cfg.Logger,
	}, nil
}

// ShowMessage shows a message to the user.
func (s *Shell) ShowMessage(ctx context.Context, level MessageLevel, title, msg string) error {
	return s.loop.Invoke(ctx, func(ctx context.Context) error {
		return s.presenter.ShowMessage(ctx, level, title, msg)
	})
}

// ResolveInstallationPath asks the user for the installation path of a game mode.
func (s *Shell) ResolveInstallationPath(ctx context.Context, d model.Descriptor, defaultPath string) (string, error) {
	var path string
	err := s.loop.Invoke(ctx, func(ctx context.Context) error {
		p, err := s.presenter.AskInstallPath(ctx, d, defaultPath)
		path = p
		return err
	})
	return path, err
}

// FirstRunSetup runs the first run setup of a game mode.
func (s *Shell) FirstRunSetup(ctx context.Context, mode model.GameMode) error {
	return s.loop.Invoke(ctx, func(ctx context.Context) error {
		return s.presenter.FirstRunSetup(ctx, mode)
	})
}

// ConfirmMakeWritable asks the user to make the read-only files of a path writable.
func (s *Shell) ConfirmMakeWritable(ctx context.Context, path string) (MakeWritableAnswer, error) {
	var answer MakeWritableAnswer
	err := s.loop.Invoke(ctx, func(ctx context.Context) error {
		a, err := s.presenter.ConfirmMakeWritable(ctx, path)
		answer = a
		return err
	})
	return answer, err
}

// Login asks the user for the repository credentials.
func (s *Shell) Login(ctx context.Context, reason string) (model.Credentials, error) {
	var creds model.Credentials
	err := s.loop.Invoke(ctx, func(ctx context.Context) error {
		c, err := s.presenter.Login(ctx, reason)
		creds = c
		return err
	})
	return creds, err
}

// SelectMode asks the user to select the game mode.
func (s *Shell) SelectMode(ctx context.Context, ds []model.Descriptor) (string, error) {
	var modeID string
	err := s.loop.Invoke(ctx, func(ctx context.Context) error {
		id, err := s.presenter.SelectMode(ctx, ds)
		modeID = id
		return err
	})
	return modeID, err
}

// ShowProgress renders the progress without waiting.
func (s *Shell) ShowProgress(p task.Progress) {
	s.loop.Post(func(ctx context.Context) { s.presenter.ShowProgress(ctx, p) })
}

// Execute executes a command, or queues it if the shell is not ready. An item already
// queued is queued once.
func (s *Shell) Execute(ctx context.Context, cmd model.Command) error {
	s.mu.Lock()
	if err := s.checkModeLocked(cmd); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.ready {
		if cmd.Kind == model.CommandAddItem && s.queuedLocked(cmd) {
			s.mu.Unlock()
			s.logger.Debugf("Command %s already queued", cmd)
			return nil
		}
		s.queue = append(s.queue, cmd)
		s.mu.Unlock()
		s.logger.Debugf("Command %s queued until ready", cmd)
		return nil
	}
	s.mu.Unlock()

	return s.execute(ctx, cmd)
}

// SetMode binds the shell to the game mode being served. Queued items of other game modes
// are dropped and the ones received afterwards are rejected.
func (s *Shell) SetMode(modeID string) (dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modeID = modeID
	kept := s.queue[:0]
	for _, cmd := range s.queue {
		if s.checkModeLocked(cmd) != nil {
			dropped++
			continue
		}
		kept = append(kept, cmd)
	}
	s.queue = kept

	if dropped > 0 {
		s.logger.Infof("%d queued items of other game modes dropped", dropped)
	}
	return dropped
}

// Ready executes the queued commands in order and from then on executes the commands
// when received. Commands received while flushing keep their order.
func (s *Shell) Ready(ctx context.Context, downloads Downloads) (flushed int, err error) {
	s.mu.Lock()
	s.downloads = downloads
	s.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return flushed, ctx.Err()
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.ready = true
			s.mu.Unlock()
			return flushed, nil
		}
		cmd := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.execute(ctx, cmd); err != nil {
			s.logger.Warningf("Queued command %s failed: %s", cmd, err)
		}
		flushed++
	}
}

// Unready makes the shell queue the commands again, the queued ones are kept.
func (s *Shell) Unready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.modeID = ""
	s.downloads = nil
}

// Pending returns the number of queued commands.
func (s *Shell) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// checkModeLocked rejects the items of a game mode other than the served one.
func (s *Shell) checkModeLocked(cmd model.Command) error {
	if cmd.Kind != model.CommandAddItem || s.modeID == "" {
		return nil
	}
	item, err := model.ParseItemURI(cmd.Item)
	if err != nil {
		return fmt.Errorf("could not parse item: %w", err)
	}
	if item.ModeID != s.modeID {
		return fmt.Errorf("item %s is not for game mode %s: %w", item.Raw, s.modeID, model.ErrNotValid)
	}
	return nil
}

func (s *Shell) queuedLocked(cmd model.Command) bool {
	for _, q := range s.queue {
		if q == cmd {
			return true
		}
	}
	return false
}

func (s *Shell) execute(ctx context.Context, cmd model.Command) error {
	switch cmd.Kind {
	case model.CommandProbe:
		return nil
	case model.CommandBringToFront:
		return s.loop.Invoke(ctx, s.presenter.BringToFront)
	case model.CommandAddItem:
		item, err := model.ParseItemURI(cmd.Item)
		if err != nil {
			return fmt.Errorf("could not parse item: %w", err)
		}
		return s.loop.Invoke(ctx, func(ctx context.Context) error { return s.addItem(ctx, item) })
	}

	return fmt.Errorf("unknown command %q: %w", cmd.Kind, model.ErrNotValid)
}

// addItem runs on the UI loop, the overwrite confirmation blocks the sender until answered.
func (s *Shell) addItem(ctx context.Context, item model.ItemURI) error {
	s.mu.Lock()
	downloads := s.downloads
	s.mu.Unlock()
	if downloads == nil {
		return fmt.Errorf("no download queue: %w", model.ErrInvalidState)
	}

	exists, err := downloads.Exists(ctx, item)
	if err != nil {
		return fmt.Errorf("could not check item: %w", err)
	}

	if exists {
		overwrite, err := s.presenter.ConfirmOverwrite(ctx, item)
		if err != nil && !errors.Is(err, model.ErrUserCancelled) {
			return fmt.Errorf("could not confirm overwrite: %w", err)
		}
		if !overwrite {
			s.logger.Infof("Item %s already requested, kept", item.Raw)
			return nil
		}
	}

	if err := downloads.Enqueue(ctx, item, exists); err != nil {
		return fmt.Errorf("could not request item: %w", err)
	}

	return s.presenter.ItemQueued(ctx, item)
}
