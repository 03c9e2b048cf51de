package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/modkeeper/cmd/modkeeper/commands"
)

func TestNormalizeArgs(t *testing.T) {
	tests := map[string]struct {
		args    []string
		expArgs []string
	}{
		"No args should return no args": {
			args:    []string{},
			expArgs: []string{},
		},
		"Long flags should be kept": {
			args:    []string{"--game", "skyrim", "--trace"},
			expArgs: []string{"--game", "skyrim", "--trace"},
		},
		"Single dash game with separate value should be rewritten": {
			args:    []string{"-game", "skyrim"},
			expArgs: []string{"--game", "skyrim"},
		},
		"Single dash game with inline value should be rewritten": {
			args:    []string{"-game=Skyrim"},
			expArgs: []string{"--game=Skyrim"},
		},
		"Single dash trace should be rewritten": {
			args:    []string{"-trace", "nxm://skyrim/mods/1"},
			expArgs: []string{"--trace", "nxm://skyrim/mods/1"},
		},
		"Single dash uninstall should be rewritten to its long name": {
			args:    []string{"-u=fallout4"},
			expArgs: []string{"--uninstall=fallout4"},
		},
		"Single dash uninstall with separate value should be rewritten": {
			args:    []string{"-u", "fallout4"},
			expArgs: []string{"--uninstall", "fallout4"},
		},
		"Unknown single dash flags should be kept": {
			args:    []string{"-h"},
			expArgs: []string{"-h"},
		},
		"Args after the terminator should be kept": {
			args:    []string{"-trace", "--", "-game"},
			expArgs: []string{"--trace", "--", "-game"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expArgs, commands.NormalizeArgs(test.args))
		})
	}
}

func TestWithDefaultCommand(t *testing.T) {
	known := []string{"run", "doctor", "items", "modes"}

	tests := map[string]struct {
		args    []string
		expArgs []string
	}{
		"No args should select the default command": {
			args:    []string{},
			expArgs: []string{"run"},
		},
		"Launch flags should select the default command": {
			args:    []string{"--game", "skyrim", "nxm://skyrim/mods/1"},
			expArgs: []string{"run", "--game", "skyrim", "nxm://skyrim/mods/1"},
		},
		"Global flags before a command should be kept": {
			args:    []string{"--debug", "items", "--game", "skyrim"},
			expArgs: []string{"--debug", "items", "--game", "skyrim"},
		},
		"Help should be kept": {
			args:    []string{"--help"},
			expArgs: []string{"--help"},
		},
		"A command name after the terminator should be ignored": {
			args:    []string{"--", "doctor"},
			expArgs: []string{"run", "--", "doctor"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expArgs, commands.WithDefaultCommand(test.args, known, "run"))
		})
	}
}
