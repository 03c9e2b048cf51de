package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/model"
)

func TestParseItemURI(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected model.ItemURI
		expErr   bool
	}{
		"A mod file URI should parse the mode and path": {
			input:    "nxm://skyrim/mods/1/files/2",
			expected: model.ItemURI{Raw: "nxm://skyrim/mods/1/files/2", ModeID: "skyrim", Path: "mods/1/files/2"},
		},
		"The mode should be lower cased": {
			input:    "nxm://SkyrimSE/mods/7",
			expected: model.ItemURI{Raw: "nxm://SkyrimSE/mods/7", ModeID: "skyrimse", Path: "mods/7"},
		},
		"Upper case scheme should be accepted": {
			input:    "NXM://fallout4/mods/3",
			expected: model.ItemURI{Raw: "NXM://fallout4/mods/3", ModeID: "fallout4", Path: "mods/3"},
		},
		"Whitespace should be trimmed": {
			input:    "  nxm://oblivion/mods/9 ",
			expected: model.ItemURI{Raw: "nxm://oblivion/mods/9", ModeID: "oblivion", Path: "mods/9"},
		},
		"Empty input should fail": {
			input:  "",
			expErr: true,
		},
		"Other scheme should fail": {
			input:  "https://skyrim/mods/1",
			expErr: true,
		},
		"Missing mode should fail": {
			input:  "nxm:///mods/1",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			got, err := model.ParseItemURI(test.input)
			if test.expErr {
				require.Error(err)
				assert.ErrorIs(err, model.ErrNotValid)
				return
			}

			require.NoError(err)
			assert.Equal(test.expected, got)
		})
	}
}

func TestIntentResolveModeID(t *testing.T) {
	item := &model.ItemURI{ModeID: "skyrim"}

	tests := map[string]struct {
		intent model.Intent
		exp    string
	}{
		"No mode and no item should resolve nothing": {
			intent: model.Intent{},
			exp:    "",
		},
		"Item mode should be used when no explicit mode": {
			intent: model.Intent{Item: item},
			exp:    "skyrim",
		},
		"Explicit mode should win over the item mode": {
			intent: model.Intent{ModeID: "Fallout4", Item: item},
			exp:    "fallout4",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.intent.ResolveModeID())
		})
	}
}

func TestGameModeValidate(t *testing.T) {
	tests := map[string]struct {
		mode   model.GameMode
		expErr bool
	}{
		"Valid mode should pass":     {mode: model.GameMode{ID: "skyrim", Name: "Skyrim"}},
		"Upper case id should fail":  {mode: model.GameMode{ID: "Skyrim", Name: "Skyrim"}, expErr: true},
		"Id with dashes should fail": {mode: model.GameMode{ID: "sky-rim", Name: "Skyrim"}, expErr: true},
		"Missing name should fail":   {mode: model.GameMode{ID: "skyrim"}, expErr: true},
		"Empty id should fail":       {mode: model.GameMode{Name: "Skyrim"}, expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.mode.Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestItemURIFileName(t *testing.T) {
	tests := map[string]struct {
		input string
		exp   string
	}{
		"A mod file should join its path": {
			input: "nxm://skyrim/mods/1/files/2",
			exp:   "mods-1-files-2",
		},
		"An item without path should use the mode": {
			input: "nxm://skyrim",
			exp:   "skyrim",
		},
		"Parent segments should be dropped": {
			input: "nxm://skyrim/../../etc/passwd",
			exp:   "etc-passwd",
		},
		"Encoded backslashes should be separators": {
			input: "nxm://skyrim/..%5C..%5Cevil",
			exp:   "evil",
		},
		"Only dot segments should use the mode": {
			input: "nxm://skyrim/./..%5C..",
			exp:   "skyrim",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			item, err := model.ParseItemURI(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.exp, item.FileName())
		})
	}
}
