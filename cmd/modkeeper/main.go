package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/modkeeper/cmd/modkeeper/commands"
	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/log"
	loglogrus "github.com/slok/modkeeper/internal/log/logrus"
	"github.com/slok/modkeeper/internal/trace"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New(conventions.AppName, "Game mod manager launcher.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	runCmd := commands.NewRunCommand(rootCmd, app)
	doctorCmd := commands.NewDoctorCommand(rootCmd, app)
	itemsCmd := commands.NewItemsCommand(rootCmd, app)
	modesCmd := commands.NewModesCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		runCmd.Name():    runCmd,
		doctorCmd.Name(): doctorCmd,
		itemsCmd.Name():  itemsCmd,
		modesCmd.Name():  modesCmd,
	}

	// Parse command.
	known := []string{runCmd.Name(), doctorCmd.Name(), itemsCmd.Name(), modesCmd.Name()}
	parseArgs := commands.WithDefaultCommand(commands.NormalizeArgs(args[1:]), known, runCmd.Name())
	cmdName, err := app.Parse(parseArgs)
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		itemsCmd.Name(): true,
		modesCmd.Name(): true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Launches record a diagnostic trace.
	var traceFile *trace.File
	if cmdName == runCmd.Name() {
		traceFile, err = trace.NewFile(trace.FileConfig{
			Dir:  filepath.Join(rootCmd.DataDir, conventions.TracesDir),
			Keep: rootCmd.Trace,
		})
		if err != nil {
			return fmt.Errorf("could not create diagnostic trace: %w", err)
		}
		rootCmd.TracePath = traceFile.Path()

		defer func() {
			if err != nil {
				traceFile.MarkFailed()
			}
			kept, cerr := traceFile.Close()
			if cerr != nil {
				fmt.Fprintf(stderr, "Could not close diagnostic trace: %s\n", cerr)
				return
			}
			if kept {
				fmt.Fprintf(stderr, "Diagnostic trace: %s\n", traceFile.Path())
			}
		}()
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd, traceFile)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					rootCmd.Logger.Errorf("%q command failed: %s", cmdName, err)
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger. The trace hook, when set, receives the
// entries even if the logger output is disabled.
func getLogger(ctx context.Context, config commands.RootCommand, traceHook *trace.File) log.Logger {
	if config.NoLog && traceHook == nil {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	if config.NoLog {
		logrusLog.Out = io.Discard
	}
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug || config.Trace {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	if traceHook != nil {
		logrusLog.AddHook(traceHook)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
