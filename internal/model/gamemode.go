package model

import (
	"fmt"
	"regexp"
)

var modeIDRegexp = regexp.MustCompile(`^[a-z0-9]+$`)

// GameMode identifies the managed game. Its ID scopes the single instance lock and the
// IPC channel.
type GameMode struct {
	ID   string
	Name string
}

// Validate checks the game mode identity.
func (g GameMode) Validate() error {
	if !modeIDRegexp.MatchString(g.ID) {
		return fmt.Errorf("game mode id %q must be lower case alphanumeric: %w", g.ID, ErrNotValid)
	}
	if g.Name == "" {
		return fmt.Errorf("game mode name is required: %w", ErrNotValid)
	}
	return nil
}

func (g GameMode) String() string { return g.ID }

// Descriptor describes a supported game mode and how to find its installation.
type Descriptor struct {
	Mode GameMode
	// Executable is the file that must exist in the installation path.
	Executable string
	// DefaultInstallPaths are candidate installation paths, in preference order.
	DefaultInstallPaths []string
}

// DataPath is a directory the runtime mode needs to write to.
type DataPath struct {
	Name string
	Path string
}

// RuntimeMode is the game mode bound to a concrete installation.
type RuntimeMode struct {
	Mode        GameMode
	InstallPath string
	DataPaths   []DataPath
}

// DataPath returns the path registered with the name.
func (r RuntimeMode) DataPath(name string) (string, bool) {
	for _, dp := range r.DataPaths {
		if dp.Name == name {
			return dp.Path, true
		}
	}
	return "", false
}

// ModeStatus is the local state of a supported game mode.
type ModeStatus struct {
	Mode        GameMode
	Default     bool
	InstallPath string
	// SetupCompleted is true once the first run setup of the mode finished.
	SetupCompleted bool
	DataBytes      int64
	Items          int
}
