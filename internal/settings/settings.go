package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

// Settings are the persisted user settings.
type Settings struct {
	DefaultMode string                  `yaml:"default_mode,omitempty"`
	Repository  RepositorySettings      `yaml:"repository,omitempty"`
	Modes       map[string]ModeSettings `yaml:"modes,omitempty"`
}

// RepositorySettings are the settings of the remote item repository.
type RepositorySettings struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// ModeSettings are the per game mode settings.
type ModeSettings struct {
	InstallPath    string `yaml:"install_path,omitempty"`
	SetupCompleted bool   `yaml:"setup_completed,omitempty"`
	// MakeWritable is the remembered answer to the read-only files question, nil when
	// the user asked to be asked again.
	MakeWritable *bool `yaml:"make_writable,omitempty"`
}

// Mode returns the settings of a game mode, zero value if missing.
func (s Settings) Mode(modeID string) ModeSettings {
	return s.Modes[modeID]
}

func (s Settings) clone() Settings {
	c := s
	c.Modes = make(map[string]ModeSettings, len(s.Modes))
	for k, v := range s.Modes {
		if v.MakeWritable != nil {
			mw := *v.MakeWritable
			v.MakeWritable = &mw
		}
		c.Modes[k] = v
	}
	return c
}

func (s Settings) validate() error {
	for id := range s.Modes {
		if err := (model.GameMode{ID: id, Name: id}).Validate(); err != nil {
			return fmt.Errorf("invalid mode settings key: %w", err)
		}
	}
	return nil
}

// StoreConfig is the configuration of the settings store.
type StoreConfig struct {
	Path   string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "settings.Store"})
	return nil
}

// Store loads and persists the settings in a YAML file.
type Store struct {
	path    string
	logger  log.Logger
	mu      sync.Mutex
	current Settings
}

// NewStore returns a store with the settings loaded from disk. A missing file means
// default settings.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Store{
		path:   cfg.Path,
		logger: cfg.Logger,
	}

	current, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = current

	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Update applies the mutation and persists the result. If the mutation fails nothing
// changes.
func (s *Store) Update(ctx context.Context, mutate func(s *Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.clone()
	if err := mutate(&next); err != nil {
		return err
	}

	if err := next.validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := s.save(next); err != nil {
		return err
	}
	s.current = next

	return nil
}

// UpdateMode applies a mutation to the settings of a game mode.
func (s *Store) UpdateMode(ctx context.Context, modeID string, mutate func(m *ModeSettings)) error {
	return s.Update(ctx, func(st *Settings) error {
		m := st.Modes[modeID]
		mutate(&m)
		st.Modes[modeID] = m
		return nil
	})
}

func (s *Store) load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debugf("No settings file at %s, using defaults", s.path)
			return Settings{Modes: map[string]ModeSettings{}}, nil
		}
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	var st Settings
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Settings{}, fmt.Errorf("parsing YAML: %w", err)
	}
	if st.Modes == nil {
		st.Modes = map[string]ModeSettings{}
	}

	if err := st.validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}

	return st, nil
}

func (s *Store) save(st Settings) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("could not create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("could not create temporary settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write temporary settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temporary settings file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("could not replace settings file: %w", err)
	}

	s.logger.Debugf("Settings saved at %s", s.path)
	return nil
}
