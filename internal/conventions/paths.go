package conventions

import (
	"fmt"
	"path/filepath"
)

const (
	// AppName is the application name used to scope system wide names.
	AppName = "modkeeper"
	// DefaultDataDir is the default data directory name (relative to home).
	DefaultDataDir = ".modkeeper"

	// SettingsFile is the settings filename inside the data directory.
	SettingsFile = "settings.yaml"
	// DBFile is the SQLite database filename inside the data directory.
	DBFile = "modkeeper.db"
	// TracesDir is the subdirectory for diagnostic traces.
	TracesDir = "traces"
	// LocksDir is the subdirectory for the instance lock files.
	LocksDir = "locks"
	// RunDir is the subdirectory for the IPC sockets.
	RunDir = "run"
	// ModesDir is the subdirectory for per game mode data.
	ModesDir = "modes"

	// Per game mode data directories.

	// ModsDir holds the downloaded items.
	ModsDir = "mods"
	// InstallInfoDir holds the installation bookkeeping.
	InstallInfoDir = "install_info"
	// OverwritesDir holds the files replaced by installed items.
	OverwritesDir = "overwrites"
	// CacheDir holds temporary extraction data.
	CacheDir = "cache"
)

// LockName returns the system wide lock name for a game mode.
func LockName(appName, modeID string) string {
	return fmt.Sprintf("%s-%s-GameModeMutex", appName, modeID)
}

// IPCNamespace returns the IPC channel namespace for a game mode.
func IPCNamespace(appName, modeID string) string {
	return fmt.Sprintf("%s-%sIpcServer", appName, modeID)
}

// IPCEndpoint returns the IPC endpoint name for a game mode inside its namespace.
func IPCEndpoint(modeID string) string {
	return modeID + "Listener"
}

// ModeDir returns the data directory of a game mode.
func ModeDir(dataDir, modeID string) string {
	return filepath.Join(dataDir, ModesDir, modeID)
}

// ModeDataDir returns a data subdirectory of a game mode.
func ModeDataDir(dataDir, modeID, name string) string {
	return filepath.Join(ModeDir(dataDir, modeID), name)
}

// SettingsPath returns the settings file path.
func SettingsPath(dataDir string) string { return filepath.Join(dataDir, SettingsFile) }

// DBPath returns the database file path.
func DBPath(dataDir string) string { return filepath.Join(dataDir, DBFile) }
