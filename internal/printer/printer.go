package printer

import "github.com/slok/modkeeper/internal/model"

// Printer knows how to print the local state in different formats.
type Printer interface {
	PrintItems(items []model.InstalledItem) error
	PrintModes(statuses []model.ModeStatus) error
	PrintChecks(modeID string, results []model.CheckResult) error
	PrintMessage(msg string) error
}
