package settings_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/settings"
)

func TestNewStore(t *testing.T) {
	tests := map[string]struct {
		content *string
		exp     settings.Settings
		expErr  bool
	}{
		"Missing file should load defaults": {
			exp: settings.Settings{Modes: map[string]settings.ModeSettings{}},
		},
		"Valid file should load": {
			content: ptr(`default_mode: skyrim
repository:
  url: https://repo.example.com
  token: abc
modes:
  skyrim:
    install_path: /games/skyrim
    setup_completed: true
    make_writable: false
`),
			exp: settings.Settings{
				DefaultMode: "skyrim",
				Repository:  settings.RepositorySettings{URL: "https://repo.example.com", Token: "abc"},
				Modes: map[string]settings.ModeSettings{
					"skyrim": {InstallPath: "/games/skyrim", SetupCompleted: true, MakeWritable: ptr(false)},
				},
			},
		},
		"Invalid YAML should fail": {
			content: ptr("modes: [1, 2"),
			expErr:  true,
		},
		"Invalid mode key should fail": {
			content: ptr("modes:\n  Sky-Rim:\n    install_path: /x\n"),
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			path := filepath.Join(t.TempDir(), "settings.yaml")
			if test.content != nil {
				require.NoError(os.WriteFile(path, []byte(*test.content), 0644))
			}

			store, err := settings.NewStore(settings.StoreConfig{Path: path, Logger: log.Noop})
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.exp, store.Get())
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	store, err := settings.NewStore(settings.StoreConfig{Path: path})
	require.NoError(err)

	err = store.UpdateMode(context.Background(), "skyrim", func(m *settings.ModeSettings) {
		m.InstallPath = "/games/skyrim"
		m.SetupCompleted = true
	})
	require.NoError(err)

	// A failed mutation should not change anything.
	err = store.Update(context.Background(), func(s *settings.Settings) error {
		s.DefaultMode = "fallout4"
		return fmt.Errorf("boom")
	})
	require.Error(err)
	assert.Empty(store.Get().DefaultMode)

	// Reloading from disk should get the persisted settings.
	reloaded, err := settings.NewStore(settings.StoreConfig{Path: path})
	require.NoError(err)
	assert.Equal("/games/skyrim", reloaded.Get().Mode("skyrim").InstallPath)
	assert.True(reloaded.Get().Mode("skyrim").SetupCompleted)

	// Copies should not leak mutations.
	got := store.Get()
	got.Modes["skyrim"] = settings.ModeSettings{}
	assert.Equal("/games/skyrim", store.Get().Mode("skyrim").InstallPath)
}

func ptr[T any](v T) *T { return &v }
