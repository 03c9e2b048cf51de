// Package terminal is the command line user interface.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/task"
	"github.com/slok/modkeeper/internal/ui"
)

// Commands accepted instead of an installation path.
const (
	CommandChangeMode = ":mode"
	CommandRescan     = ":rescan"
)

// PresenterConfig is the configuration of the terminal presenter.
type PresenterConfig struct {
	In  io.Reader
	Out io.Writer
	// Interactive enables the prompts, when disabled the defaults are used.
	Interactive bool
	Logger      log.Logger
}

func (c *PresenterConfig) defaults() error {
	if c.In == nil {
		return fmt.Errorf("input is required")
	}
	if c.Out == nil {
		return fmt.Errorf("output is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "terminal.Presenter"})
	return nil
}

// Presenter implements ui.Presenter on a terminal.
type Presenter struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	logger      log.Logger

	readOnce sync.Once
	lines    chan string

	progressShown bool
}

var _ ui.Presenter = &Presenter{}

// NewPresenter returns a new terminal presenter.
func NewPresenter(cfg PresenterConfig) (*Presenter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Presenter{
		in:          cfg.In,
		out:         cfg.Out,
		interactive: cfg.Interactive,
		logger:      cfg.Logger,
	}, nil
}

func (p *Presenter) ShowMessage(ctx context.Context, level ui.MessageLevel, title, msg string) error {
	p.println(levelMsg(level, title, msg))
	return nil
}

func (p *Presenter) AskInstallPath(ctx context.Context, d model.Descriptor, defaultPath string) (string, error) {
	if !p.interactive {
		if defaultPath == "" {
			return "", fmt.Errorf("%s installation path unknown: %w", d.Mode.Name, model.ErrUserCancelled)
		}
		return defaultPath, nil
	}

	hint := fmt.Sprintf("(%s to change game, %s to search again)", CommandChangeMode, CommandRescan)
	if defaultPath != "" {
		hint = fmt.Sprintf("[%s] %s", defaultPath, hint)
	}
	answer, err := p.ask(ctx, fmt.Sprintf("Where is %s installed?", d.Mode.Name), hint)
	if err != nil {
		return "", err
	}

	switch answer {
	case CommandChangeMode:
		return "", model.ErrChangeDefaultMode
	case CommandRescan:
		return "", model.ErrRescanInstances
	case "":
		if defaultPath == "" {
			return "", model.ErrUserCancelled
		}
		return defaultPath, nil
	}
	return answer, nil
}

func (p *Presenter) FirstRunSetup(ctx context.Context, mode model.GameMode) error {
	p.println(levelMsg(ui.MessageInfo, mode.Name, "first run, the data folders and settings will be created."))
	if !p.interactive {
		return nil
	}

	ok, err := p.confirm(ctx, "Continue?", true)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUserCancelled
	}
	return nil
}

func (p *Presenter) ConfirmMakeWritable(ctx context.Context, path string) (ui.MakeWritableAnswer, error) {
	if !p.interactive {
		return ui.MakeWritableAnswer{}, nil
	}

	for {
		answer, err := p.ask(ctx, fmt.Sprintf("%s has read-only files, make them writable?", path), "[yes/no/always/never]")
		if err != nil {
			return ui.MakeWritableAnswer{}, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			return ui.MakeWritableAnswer{Agree: true}, nil
		case "n", "no", "":
			return ui.MakeWritableAnswer{}, nil
		case "a", "always":
			return ui.MakeWritableAnswer{Agree: true, Remember: true}, nil
		case "never":
			return ui.MakeWritableAnswer{Remember: true}, nil
		}
	}
}

func (p *Presenter) Login(ctx context.Context, reason string) (model.Credentials, error) {
	if !p.interactive {
		return model.Credentials{}, fmt.Errorf("login required (%s): %w", reason, model.ErrUserCancelled)
	}

	if reason != "" {
		p.println(levelMsg(ui.MessageWarning, "Login", reason))
	}
	user, err := p.ask(ctx, "Username:", "(optional)")
	if err != nil {
		return model.Credentials{}, err
	}
	token, err := p.ask(ctx, "API key:", "(empty to cancel)")
	if err != nil {
		return model.Credentials{}, err
	}
	if token == "" {
		return model.Credentials{}, model.ErrUserCancelled
	}

	return model.Credentials{Username: user, Token: token}, nil
}

func (p *Presenter) SelectMode(ctx context.Context, ds []model.Descriptor) (string, error) {
	if len(ds) == 0 {
		return "", fmt.Errorf("no game modes: %w", model.ErrNotValid)
	}
	if !p.interactive {
		return "", fmt.Errorf("game mode selection required, use --game: %w", model.ErrUserCancelled)
	}

	for i, d := range ds {
		p.println(fmt.Sprintf("  %s %s %s", accentStyle.Render(strconv.Itoa(i+1)+")"), d.Mode.Name, mutedStyle.Render(d.Mode.ID)))
	}

	for {
		answer, err := p.ask(ctx, "Which game do you want to manage?", "")
		if err != nil {
			return "", err
		}
		if answer == "" {
			return "", model.ErrUserCancelled
		}

		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(ds) {
			return ds[n-1].Mode.ID, nil
		}
		for _, d := range ds {
			if strings.EqualFold(answer, d.Mode.ID) {
				return d.Mode.ID, nil
			}
		}
		p.println(levelMsg(ui.MessageWarning, "", fmt.Sprintf("%q is not a game", answer)))
	}
}

func (p *Presenter) ConfirmOverwrite(ctx context.Context, item model.ItemURI) (bool, error) {
	if !p.interactive {
		return false, nil
	}
	return p.confirm(ctx, fmt.Sprintf("%s is already queued, download it again?", item.FileName()), false)
}

func (p *Presenter) ItemQueued(ctx context.Context, item model.ItemURI) error {
	p.println(successMsg("%s queued", item.Raw))
	return nil
}

// BringToFront can't raise a terminal, it lets the user know another launch asked for it.
func (p *Presenter) BringToFront(ctx context.Context) error {
	p.println(levelMsg(ui.MessageInfo, "", "Another launch of this game mode was redirected here"))
	return nil
}

func (p *Presenter) ShowProgress(ctx context.Context, pr task.Progress) {
	if !p.interactive {
		return
	}
	fmt.Fprintf(p.out, "\r\033[K%s", renderProgress(pr))
	p.progressShown = true
}

func (p *Presenter) println(s string) {
	if p.progressShown {
		fmt.Fprint(p.out, "\r\033[K")
		p.progressShown = false
	}
	fmt.Fprintln(p.out, s)
}

func (p *Presenter) confirm(ctx context.Context, q string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	for {
		answer, err := p.ask(ctx, q, hint)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func (p *Presenter) ask(ctx context.Context, q, hint string) (string, error) {
	if p.progressShown {
		fmt.Fprintln(p.out)
		p.progressShown = false
	}
	fmt.Fprint(p.out, question(q, hint))

	line, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readLine reads from a single reader goroutine so a cancelled prompt doesn't lose the
// next line.
func (p *Presenter) readLine(ctx context.Context) (string, error) {
	p.readOnce.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			s := bufio.NewScanner(p.in)
			for s.Scan() {
				p.lines <- s.Text()
			}
			if err := s.Err(); err != nil {
				p.logger.Warningf("Could not read the input: %s", err)
			}
		}()
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", model.ErrUserCancelled, ctx.Err())
	case line, ok := <-p.lines:
		if !ok {
			return "", fmt.Errorf("input closed: %w", model.ErrUserCancelled)
		}
		return line, nil
	}
}
