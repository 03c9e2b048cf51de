package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/modkeeper/internal/model"
)

// TablePrinter prints the local state in a table format.
type TablePrinter struct {
	writer io.Writer
}

var _ Printer = &TablePrinter{}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintItems prints installed items in a table format.
func (t *TablePrinter) PrintItems(items []model.InstalledItem) error {
	if len(items) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "NAME\tVERSION\tFORMAT\tPATH\tINSTALLED")

	// Print rows.
	for _, it := range items {
		format := fmt.Sprintf("v%d", it.FormatVersion)
		if it.FormatVersion < model.CurrentInstallFormatVersion {
			format += " (outdated)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.Name, it.Version, format, it.Path, TimeAgo(it.InstalledAt))
	}

	return nil
}

// PrintModes prints the game modes status in a table format.
func (t *TablePrinter) PrintModes(statuses []model.ModeStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tNAME\tDEFAULT\tINSTALL PATH\tITEMS\tDATA SIZE")

	// Print rows.
	for _, s := range statuses {
		def := ""
		if s.Default {
			def = "*"
		}
		path := s.InstallPath
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", s.Mode.ID, s.Mode.Name, def, path, s.Items, FormatBytes(s.DataBytes))
	}

	return nil
}

// PrintChecks prints the write access checks of a game mode.
func (t *TablePrinter) PrintChecks(modeID string, results []model.CheckResult) error {
	fmt.Fprintf(t.writer, "\nChecking %s...\n", modeID)
	for _, r := range results {
		fmt.Fprintf(t.writer, "  %s %-20s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}
