package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/modkeeper/internal/app/status"
	"github.com/slok/modkeeper/internal/gamemode"
)

type ModesCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	game   string
	format string
}

// NewModesCommand returns the modes command.
func NewModesCommand(rootCmd *RootCommand, app *kingpin.Application) *ModesCommand {
	c := &ModesCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("modes", "Show the supported game modes and their local state.")
	c.Cmd.Flag("game", "Only show this game mode.").StringVar(&c.game)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ModesCommand) Name() string { return c.Cmd.FullCommand() }

func (c ModesCommand) Run(ctx context.Context) error {
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

	svc, err := status.NewService(status.ServiceConfig{
		DataDir:    c.rootCmd.DataDir,
		Registry:   gamemode.NewDefaultRegistry(),
		Settings:   store,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	statuses, err := svc.Run(ctx, status.Request{ModeID: strings.ToLower(c.game)})
	if err != nil {
		return fmt.Errorf("could not get game modes status: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintModes(statuses); err != nil {
		return fmt.Errorf("could not print game modes: %w", err)
	}

	return nil
}
