package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/modkeeper/internal/app/list"
)

type ItemsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	game     string
	outdated bool
	format   string
}

// NewItemsCommand returns the items command.
func NewItemsCommand(rootCmd *RootCommand, app *kingpin.Application) *ItemsCommand {
	c := &ItemsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("items", "List the installed items of a game mode.")
	c.Cmd.Flag("game", "Game mode of the items.").Required().StringVar(&c.game)
	c.Cmd.Flag("outdated", "Only list the items the next startup will upgrade.").BoolVar(&c.outdated)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ItemsCommand) Name() string { return c.Cmd.FullCommand() }

func (c ItemsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	items, err := svc.Run(ctx, list.Request{
		ModeID:       strings.ToLower(c.game),
		OutdatedOnly: c.outdated,
	})
	if err != nil {
		return fmt.Errorf("could not list items: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintItems(items); err != nil {
		return fmt.Errorf("could not print items: %w", err)
	}

	return nil
}
