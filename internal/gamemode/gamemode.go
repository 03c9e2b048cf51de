package gamemode

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

// Registry knows the supported game modes.
type Registry struct {
	descriptors map[string]model.Descriptor
}

// NewRegistry returns a registry with the descriptors. Repeated or invalid modes are rejected.
func NewRegistry(descriptors ...model.Descriptor) (*Registry, error) {
	r := &Registry{descriptors: map[string]model.Descriptor{}}
	for _, d := range descriptors {
		if err := d.Mode.Validate(); err != nil {
			return nil, fmt.Errorf("invalid descriptor: %w", err)
		}
		if d.Executable == "" {
			return nil, fmt.Errorf("descriptor %q executable is required: %w", d.Mode.ID, model.ErrNotValid)
		}
		if _, ok := r.descriptors[d.Mode.ID]; ok {
			return nil, fmt.Errorf("descriptor %q: %w", d.Mode.ID, model.ErrAlreadyExists)
		}
		r.descriptors[d.Mode.ID] = d
	}
	return r, nil
}

// NewDefaultRegistry returns the registry with the built-in game modes.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the descriptor of a game mode.
func (r *Registry) Get(modeID string) (model.Descriptor, error) {
	d, ok := r.descriptors[modeID]
	if !ok {
		return model.Descriptor{}, fmt.Errorf("game mode %q: %w", modeID, model.ErrNotFound)
	}
	return d, nil
}

// List returns the descriptors sorted by mode ID.
func (r *Registry) List() []model.Descriptor {
	ds := make([]model.Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].Mode.ID < ds[j].Mode.ID })
	return ds
}

// Builtin returns the built-in game mode descriptors.
func Builtin() []model.Descriptor {
	steam := func(dir string) []string {
		return []string{
			filepath.Join("C:", "Program Files (x86)", "Steam", "steamapps", "common", dir),
			filepath.Join("~", ".steam", "steam", "steamapps", "common", dir),
		}
	}

	return []model.Descriptor{
		{Mode: model.GameMode{ID: "fallout3", Name: "Fallout 3"}, Executable: "Fallout3.exe", DefaultInstallPaths: steam("Fallout 3")},
		{Mode: model.GameMode{ID: "fallout4", Name: "Fallout 4"}, Executable: "Fallout4.exe", DefaultInstallPaths: steam("Fallout 4")},
		{Mode: model.GameMode{ID: "falloutnv", Name: "Fallout: New Vegas"}, Executable: "FalloutNV.exe", DefaultInstallPaths: steam("Fallout New Vegas")},
		{Mode: model.GameMode{ID: "oblivion", Name: "Oblivion"}, Executable: "Oblivion.exe", DefaultInstallPaths: steam("Oblivion")},
		{Mode: model.GameMode{ID: "skyrim", Name: "Skyrim"}, Executable: "TESV.exe", DefaultInstallPaths: steam("Skyrim")},
		{Mode: model.GameMode{ID: "skyrimse", Name: "Skyrim Special Edition"}, Executable: "SkyrimSE.exe", DefaultInstallPaths: steam("Skyrim Special Edition")},
	}
}

// BuilderConfig is the configuration of the runtime mode builder.
type BuilderConfig struct {
	DataDir string
	Logger  log.Logger
}

func (c *BuilderConfig) defaults() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gamemode.Builder"})
	return nil
}

// Builder binds game modes to their installation and derives the data paths.
type Builder struct {
	dataDir string
	logger  log.Logger
}

// NewBuilder returns a new runtime mode builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Builder{
		dataDir: cfg.DataDir,
		logger:  cfg.Logger,
	}, nil
}

// Data path names of a runtime mode.
const (
	DataPathMods        = conventions.ModsDir
	DataPathInstallInfo = conventions.InstallInfoDir
	DataPathOverwrites  = conventions.OverwritesDir
	DataPathCache       = conventions.CacheDir
	DataPathGameData    = "game_data"
)

// BuildRuntimeMode returns the runtime mode. The warning is not empty when the mode is
// usable but something looks off to the user.
func (b *Builder) BuildRuntimeMode(ctx context.Context, mode model.GameMode, installPath string) (*model.RuntimeMode, string, error) {
	if installPath == "" {
		return nil, "", fmt.Errorf("install path is required: %w", model.ErrConfiguration)
	}

	rm := &model.RuntimeMode{
		Mode:        mode,
		InstallPath: installPath,
		DataPaths: []model.DataPath{
			{Name: DataPathMods, Path: conventions.ModeDataDir(b.dataDir, mode.ID, conventions.ModsDir)},
			{Name: DataPathInstallInfo, Path: conventions.ModeDataDir(b.dataDir, mode.ID, conventions.InstallInfoDir)},
			{Name: DataPathOverwrites, Path: conventions.ModeDataDir(b.dataDir, mode.ID, conventions.OverwritesDir)},
			{Name: DataPathCache, Path: conventions.ModeDataDir(b.dataDir, mode.ID, conventions.CacheDir)},
			{Name: DataPathGameData, Path: filepath.Join(installPath, "Data")},
		},
	}

	warning := ""
	if isInside(installPath, b.dataDir) {
		warning = fmt.Sprintf("The %s installation at %s is inside the application data directory, this is not supported and may lose data.", mode.Name, installPath)
		b.logger.Warningf("Install path %s inside data dir %s", installPath, b.dataDir)
	}

	return rm, warning, nil
}

func isInside(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
