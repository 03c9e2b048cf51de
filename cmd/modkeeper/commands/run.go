package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/modkeeper/internal/app/startup"
	"github.com/slok/modkeeper/internal/app/uninstall"
	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/downloads"
	"github.com/slok/modkeeper/internal/gamemode"
	"github.com/slok/modkeeper/internal/instance"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/pipeline"
	"github.com/slok/modkeeper/internal/task"
	"github.com/slok/modkeeper/internal/ui"
	"github.com/slok/modkeeper/internal/ui/terminal"
	"github.com/slok/modkeeper/internal/writeaccess"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	game          string
	uninstallID   string
	lockAttempts  int
	lockBackoff   time.Duration
	repositoryURL string
	noInteraction bool
	item          string
}

// NewRunCommand returns the run command, the default one.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Start the game mode, or hand the item to the instance already running it.").Default()
	c.Cmd.Flag("game", "Game mode to start, overrides the default one.").StringVar(&c.game)
	c.Cmd.Flag("uninstall", "Remove every data stored for the game mode and exit.").StringVar(&c.uninstallID)
	c.Cmd.Flag("lock-attempts", "Attempts to own the game mode or reach its live instance.").Default("3").IntVar(&c.lockAttempts)
	c.Cmd.Flag("lock-backoff", "Wait between the attempts to own the game mode.").Default("5s").DurationVar(&c.lockBackoff)
	c.Cmd.Flag("repository-url", "Item repository URL, overrides the settings one.").StringVar(&c.repositoryURL)
	c.Cmd.Flag("no-interaction", "Never prompt, use the default answers.").BoolVar(&c.noInteraction)
	c.Cmd.Arg("item", "Item URI to add (e.g nxm://skyrim/mods/1/files/2).").StringVar(&c.item)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	intent := model.Intent{
		ModeID:      c.game,
		Trace:       c.rootCmd.Trace,
		UninstallID: c.uninstallID,
	}
	if c.item != "" {
		item, err := model.ParseItemURI(c.item)
		if err != nil {
			return fmt.Errorf("could not parse item: %w", err)
		}
		intent.Item = &item
	}

	if intent.UninstallID != "" {
		return c.uninstall(ctx, intent.UninstallID)
	}

	return c.startup(ctx, intent)
}

func (c RunCommand) startup(ctx context.Context, intent model.Intent) error {
	logger := c.rootCmd.Logger
	dataDir := c.rootCmd.DataDir

	store, err := newSettingsStore(c.rootCmd)
	if err != nil {
		return err
	}

	registry := gamemode.NewDefaultRegistry()

	loop, err := ui.NewLoop(ui.LoopConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create ui loop: %w", err)
	}

	presenter, err := terminal.NewPresenter(terminal.PresenterConfig{
		In:          c.rootCmd.Stdin,
		Out:         c.rootCmd.Stdout,
		Interactive: terminal.DetectInteractive(c.noInteraction),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create presenter: %w", err)
	}

	shell, err := ui.NewShell(ui.ShellConfig{Loop: loop, Presenter: presenter, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create shell: %w", err)
	}

	locker, err := newLocker(c.rootCmd)
	if err != nil {
		return err
	}

	coordinator, err := instance.NewCoordinator(instance.CoordinatorConfig{
		Locker:    instance.FileLocker(locker),
		SocketDir: filepath.Join(dataDir, conventions.RunDir),
		Attempts:  c.lockAttempts,
		Backoff:   c.lockBackoff,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create instance coordinator: %w", err)
	}

	builder, err := gamemode.NewBuilder(gamemode.BuilderConfig{DataDir: dataDir, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create game mode builder: %w", err)
	}

	checker, err := writeaccess.NewChecker(writeaccess.CheckerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create write access checker: %w", err)
	}

	tracker := task.NewTracker(logger)
	defer tracker.Abandon()

	services := func(ctx context.Context) (*pipeline.Services, error) {
		repo, err := newRepository(ctx, c.rootCmd)
		if err != nil {
			return nil, err
		}
		journal, err := newJournal(c.rootCmd, repo)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		return &pipeline.Services{Repository: repo, Journal: journal, Close: repo.Close}, nil
	}

	downloadQueue := func(dir string) (ui.Downloads, error) {
		q, err := downloads.NewQueue(downloads.QueueConfig{Dir: dir, Logger: logger})
		if err != nil {
			return nil, err
		}
		return q, nil
	}

	pipelines := func(d model.Descriptor) (startup.Pipeline, error) {
		p, err := pipeline.New(pipeline.Config{
			Descriptor:    d,
			UI:            shell,
			Settings:      store,
			Builder:       builder,
			Access:        checker,
			RepositoryURL: c.repositoryURL,
			Services:      services,
			Commands:      shell,
			Downloads:     downloadQueue,
			Tracker:       tracker,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	svc, err := startup.NewService(startup.ServiceConfig{
		Registry:    registry,
		Settings:    store,
		Shell:       shell,
		Coordinator: coordinator,
		Pipelines:   pipelines,
		TracePath:   c.rootCmd.TracePath,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create startup service: %w", err)
	}

	var g run.Group

	// UI loop.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return loop.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Startup.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				outcome, err := svc.Run(ctx, intent)
				if err != nil {
					return err
				}
				logger.Infof("Launch finished: %s", outcome)
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

func (c RunCommand) uninstall(ctx context.Context, modeID string) error {
	logger := c.rootCmd.Logger

	store, err := newSettingsStore(c.rootCmd)
	if err != nil {
		return err
	}

	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	journal, err := newJournal(c.rootCmd, repo)
	if err != nil {
		return err
	}

	locker, err := newLocker(c.rootCmd)
	if err != nil {
		return err
	}

	svc, err := uninstall.NewService(uninstall.ServiceConfig{
		DataDir:    c.rootCmd.DataDir,
		Settings:   store,
		Repository: repo,
		Journal:    journal,
		Locker:     instance.FileLocker(locker),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Run(ctx, modeID); err != nil {
		return fmt.Errorf("could not uninstall %s: %w", modeID, err)
	}

	return newPrinter(formatTable, c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Removed the data of %s", modeID))
}
