package terminal

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/slok/modkeeper/internal/ui"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// DetectInteractive returns true when stderr is a terminal and the environment doesn't
// disable the prompts. It also sets the color profile.
func DetectInteractive(noInteraction bool) bool {
	interactive := !noInteraction &&
		!envTruthy("NO_INTERACTION") &&
		!envTruthy("CI") &&
		!strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") &&
		stderrIsTerminal()

	if interactive {
		lipgloss.SetColorProfile(termenv.ColorProfile())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	return interactive
}

func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func envTruthy(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func levelMsg(level ui.MessageLevel, title, msg string) string {
	var mark string
	switch level {
	case ui.MessageError:
		mark = errorStyle.Render("✗")
	case ui.MessageWarning:
		mark = warnStyle.Render("!")
	default:
		mark = accentStyle.Render("●")
	}

	if title == "" {
		return fmt.Sprintf("%s %s", mark, msg)
	}
	return fmt.Sprintf("%s %s %s", mark, boldStyle.Render(title+":"), msg)
}

func successMsg(format string, a ...any) string {
	return successStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func question(q, hint string) string {
	s := accentStyle.Render("?") + " " + q
	if hint != "" {
		s += " " + mutedStyle.Render(hint)
	}
	return s + " "
}
