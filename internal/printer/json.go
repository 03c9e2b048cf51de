package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/modkeeper/internal/model"
)

// JSONPrinter prints the local state in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

var _ Printer = &JSONPrinter{}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type itemOutput struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	FormatVersion int       `json:"format_version"`
	Outdated      bool      `json:"outdated"`
	Path          string    `json:"path"`
	InstalledAt   time.Time `json:"installed_at"`
}

type modeOutput struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Default        bool   `json:"default"`
	InstallPath    string `json:"install_path,omitempty"`
	SetupCompleted bool   `json:"setup_completed"`
	Items          int    `json:"items"`
	DataBytes      int64  `json:"data_bytes"`
}

type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type checksOutput struct {
	Mode   string        `json:"mode"`
	Checks []checkOutput `json:"checks"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintItems prints installed items in JSON format.
func (j *JSONPrinter) PrintItems(items []model.InstalledItem) error {
	output := make([]itemOutput, len(items))
	for i, it := range items {
		output[i] = itemOutput{
			ID:            it.ID,
			Name:          it.Name,
			Version:       it.Version,
			FormatVersion: it.FormatVersion,
			Outdated:      it.FormatVersion < model.CurrentInstallFormatVersion,
			Path:          it.Path,
			InstalledAt:   it.InstalledAt.UTC(),
		}
	}

	return j.encode(output)
}

// PrintModes prints the game modes status in JSON format.
func (j *JSONPrinter) PrintModes(statuses []model.ModeStatus) error {
	output := make([]modeOutput, len(statuses))
	for i, s := range statuses {
		output[i] = modeOutput{
			ID:             s.Mode.ID,
			Name:           s.Mode.Name,
			Default:        s.Default,
			InstallPath:    s.InstallPath,
			SetupCompleted: s.SetupCompleted,
			Items:          s.Items,
			DataBytes:      s.DataBytes,
		}
	}

	return j.encode(output)
}

// PrintChecks prints the write access checks of a game mode in JSON format.
func (j *JSONPrinter) PrintChecks(modeID string, results []model.CheckResult) error {
	output := checksOutput{Mode: modeID, Checks: make([]checkOutput, len(results))}
	for i, r := range results {
		output.Checks[i] = checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}

	return j.encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
