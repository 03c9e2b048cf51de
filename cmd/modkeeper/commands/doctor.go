package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/modkeeper/internal/app/doctor"
	"github.com/slok/modkeeper/internal/gamemode"
	"github.com/slok/modkeeper/internal/writeaccess"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	game   string
	format string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Check the write access of the game mode folders.")
	c.Cmd.Flag("game", "Game mode to check, all the configured ones by default.").StringVar(&c.game)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	store, err := newSettingsStore(c.rootCmd)
	if err != nil {
		return err
	}

	checker, err := writeaccess.NewChecker(writeaccess.CheckerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create write access checker: %w", err)
	}

	svc, err := doctor.NewService(doctor.ServiceConfig{
		DataDir:  c.rootCmd.DataDir,
		Registry: gamemode.NewDefaultRegistry(),
		Settings: store,
		Checker:  checker,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	reports, err := svc.Run(ctx, doctor.Request{ModeID: strings.ToLower(c.game)})
	if err != nil {
		return fmt.Errorf("could not run checks: %w", err)
	}

	p := newPrinter(c.format, out)
	totalErrors := 0
	totalWarnings := 0
	for _, r := range reports {
		if err := p.PrintChecks(r.ModeID, r.Results); err != nil {
			return fmt.Errorf("could not print checks: %w", err)
		}
		totalErrors += r.Errors()
		totalWarnings += r.Warnings()
	}

	// Summary.
	if c.format == formatTable {
		fmt.Fprintln(out)
		switch {
		case len(reports) == 0:
			fmt.Fprintln(out, "No game mode configured yet, use --game to check one.")
		case totalErrors == 0 && totalWarnings == 0:
			fmt.Fprintln(out, "All checks passed!")
		default:
			var summary []string
			if totalErrors > 0 {
				summary = append(summary, fmt.Sprintf("%d error(s)", totalErrors))
			}
			if totalWarnings > 0 {
				summary = append(summary, fmt.Sprintf("%d warning(s)", totalWarnings))
			}
			fmt.Fprintln(out, strings.Join(summary, ", "))
		}
	}

	if totalErrors > 0 {
		return fmt.Errorf("write access checks failed with %d error(s)", totalErrors)
	}

	return nil
}
