package terminal_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/ui"
	"github.com/slok/modkeeper/internal/ui/terminal"
)

var skyrim = model.Descriptor{Mode: model.GameMode{ID: "skyrim", Name: "Skyrim"}, Executable: "TESV.exe"}

func newPresenter(t *testing.T, input string, interactive bool) (*terminal.Presenter, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	p, err := terminal.NewPresenter(terminal.PresenterConfig{
		In:          strings.NewReader(input),
		Out:         out,
		Interactive: interactive,
	})
	require.NoError(t, err)
	return p, out
}

func TestPresenterAskInstallPath(t *testing.T) {
	tests := map[string]struct {
		input       string
		interactive bool
		defaultPath string
		expPath     string
		expErr      error
	}{
		"A typed path should be returned": {
			input:       "/games/skyrim\n",
			interactive: true,
			expPath:     "/games/skyrim",
		},
		"An empty answer should use the default path": {
			input:       "\n",
			interactive: true,
			defaultPath: "/steam/skyrim",
			expPath:     "/steam/skyrim",
		},
		"An empty answer without default should cancel": {
			input:       "\n",
			interactive: true,
			expErr:      model.ErrUserCancelled,
		},
		"Asking to change the game should be reported": {
			input:       ":mode\n",
			interactive: true,
			expErr:      model.ErrChangeDefaultMode,
		},
		"Asking to search again should be reported": {
			input:       " :rescan \n",
			interactive: true,
			expErr:      model.ErrRescanInstances,
		},
		"A closed input should cancel": {
			input:       "",
			interactive: true,
			defaultPath: "/steam/skyrim",
			expErr:      model.ErrUserCancelled,
		},
		"Non interactive should accept the default path": {
			defaultPath: "/steam/skyrim",
			expPath:     "/steam/skyrim",
		},
		"Non interactive without default should cancel": {
			expErr: model.ErrUserCancelled,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			p, _ := newPresenter(t, test.input, test.interactive)
			path, err := p.AskInstallPath(context.Background(), skyrim, test.defaultPath)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else if assert.NoError(err) {
				assert.Equal(test.expPath, path)
			}
		})
	}
}

func TestPresenterConfirmMakeWritable(t *testing.T) {
	tests := map[string]struct {
		input     string
		expAnswer ui.MakeWritableAnswer
	}{
		"Yes should agree once": {
			input:     "yes\n",
			expAnswer: ui.MakeWritableAnswer{Agree: true},
		},
		"Empty should decline once": {
			input:     "\n",
			expAnswer: ui.MakeWritableAnswer{},
		},
		"Always should agree and remember": {
			input:     "always\n",
			expAnswer: ui.MakeWritableAnswer{Agree: true, Remember: true},
		},
		"Never should decline and remember": {
			input:     "never\n",
			expAnswer: ui.MakeWritableAnswer{Remember: true},
		},
		"Unknown answers should ask again": {
			input:     "maybe\ny\n",
			expAnswer: ui.MakeWritableAnswer{Agree: true},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p, _ := newPresenter(t, test.input, true)
			answer, err := p.ConfirmMakeWritable(context.Background(), "/data/mods")
			require.NoError(t, err)
			assert.Equal(t, test.expAnswer, answer)
		})
	}
}

func TestPresenterLogin(t *testing.T) {
	tests := map[string]struct {
		input    string
		expCreds model.Credentials
		expErr   error
	}{
		"Username and key should be returned": {
			input:    "dovahkiin\nsecret\n",
			expCreds: model.Credentials{Username: "dovahkiin", Token: "secret"},
		},
		"An empty key should cancel": {
			input:  "dovahkiin\n\n",
			expErr: model.ErrUserCancelled,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			p, out := newPresenter(t, test.input, true)
			creds, err := p.Login(context.Background(), "token expired")
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else if assert.NoError(err) {
				assert.Equal(test.expCreds, creds)
			}
			assert.Contains(out.String(), "token expired")
		})
	}
}

func TestPresenterSelectMode(t *testing.T) {
	modes := []model.Descriptor{
		{Mode: model.GameMode{ID: "fallout4", Name: "Fallout 4"}},
		{Mode: model.GameMode{ID: "skyrim", Name: "Skyrim"}},
	}

	tests := map[string]struct {
		input  string
		expID  string
		expErr error
	}{
		"A number should select by position": {
			input: "2\n",
			expID: "skyrim",
		},
		"An ID should select the mode": {
			input: "Fallout4\n",
			expID: "fallout4",
		},
		"An unknown game should ask again": {
			input: "morrowind\n1\n",
			expID: "fallout4",
		},
		"An empty answer should cancel": {
			input:  "\n",
			expErr: model.ErrUserCancelled,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			p, _ := newPresenter(t, test.input, true)
			id, err := p.SelectMode(context.Background(), modes)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else if assert.NoError(err) {
				assert.Equal(test.expID, id)
			}
		})
	}
}

func TestPresenterPromptHonorsContext(t *testing.T) {
	p, err := terminal.NewPresenter(terminal.PresenterConfig{
		In:          blockingReader{},
		Out:         &bytes.Buffer{},
		Interactive: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = p.FirstRunSetup(ctx, skyrim.Mode)
	assert.ErrorIs(t, err, model.ErrUserCancelled)
}

func TestPresenterMessages(t *testing.T) {
	assert := assert.New(t)

	p, out := newPresenter(t, "", false)
	item, err := model.ParseItemURI("nxm://skyrim/mods/1/files/2")
	require.NoError(t, err)

	assert.NoError(p.ShowMessage(context.Background(), ui.MessageError, "Configuration problem", "TESV.exe not found"))
	assert.NoError(p.ItemQueued(context.Background(), item))

	got := out.String()
	assert.Contains(got, "Configuration problem")
	assert.Contains(got, "TESV.exe not found")
	assert.Contains(got, "nxm://skyrim/mods/1/files/2 queued")
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	time.Sleep(time.Hour)
	return 0, nil
}
