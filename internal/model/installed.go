package model

import "time"

// CurrentInstallFormatVersion is the format version of the installed items records.
// Records with an older version are upgraded at startup.
const CurrentInstallFormatVersion = 2

// InstalledItem is an item previously installed for a game mode.
type InstalledItem struct {
	ID            string
	ModeID        string
	Name          string
	Path          string
	Version       string
	FormatVersion int
	InstalledAt   time.Time
}
