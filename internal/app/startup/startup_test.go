package startup_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/app/startup"
	"github.com/slok/modkeeper/internal/app/startup/startupmock"
	"github.com/slok/modkeeper/internal/gamemode"
	"github.com/slok/modkeeper/internal/instance"
	"github.com/slok/modkeeper/internal/ipc"
	"github.com/slok/modkeeper/internal/lock"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/pipeline"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/ui"
	"github.com/slok/modkeeper/internal/ui/uimock"
)

type fixture struct {
	shell *startupmock.MockShell
	// sink replaces the mocked shell when set.
	sink      startup.Shell
	pipelines map[string][]*startupmock.MockPipeline
	ran       []string
	settings  *settings.Store
	locker    *lock.Locker
	socketDir string

	mu sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir, err := os.MkdirTemp("", "mkst")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	st, err := settings.NewStore(settings.StoreConfig{Path: filepath.Join(dir, "settings.yaml")})
	require.NoError(t, err)
	locker, err := lock.NewLocker(lock.LockerConfig{Dir: dir})
	require.NoError(t, err)

	shell := &startupmock.MockShell{}
	shell.On("Unready").Maybe()
	shell.On("SetMode", mock.Anything).Maybe().Return(0)

	return &fixture{
		shell:     shell,
		pipelines: map[string][]*startupmock.MockPipeline{},
		settings:  st,
		locker:    locker,
		socketDir: dir,
	}
}

// pipeline registers the next initialization of a game mode.
func (f *fixture) pipeline(modeID string) *startupmock.MockPipeline {
	p := &startupmock.MockPipeline{}
	f.pipelines[modeID] = append(f.pipelines[modeID], p)
	return p
}

func (f *fixture) service(t *testing.T, coordinator startup.Coordinator) *startup.Service {
	if coordinator == nil {
		c, err := instance.NewCoordinator(instance.CoordinatorConfig{
			Locker:    instance.FileLocker(f.locker),
			SocketDir: f.socketDir,
		})
		require.NoError(t, err)
		coordinator = c
	}

	var shell startup.Shell = f.shell
	if f.sink != nil {
		shell = f.sink
	}

	svc, err := startup.NewService(startup.ServiceConfig{
		Registry:    gamemode.NewDefaultRegistry(),
		Settings:    f.settings,
		Shell:       shell,
		Coordinator: coordinator,
		Pipelines: func(d model.Descriptor) (startup.Pipeline, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.ran = append(f.ran, d.Mode.ID)
			ps := f.pipelines[d.Mode.ID]
			if len(ps) == 0 {
				return nil, fmt.Errorf("unexpected initialization of %s", d.Mode.ID)
			}
			f.pipelines[d.Mode.ID] = ps[1:]
			return ps[0], nil
		},
		TracePath: "/data/traces/20261019-083000.log",
	})
	require.NoError(t, err)
	return svc
}

func (f *fixture) setDefaultMode(t *testing.T, modeID string) {
	require.NoError(t, f.settings.Update(context.Background(), func(s *settings.Settings) error {
		s.DefaultMode = modeID
		return nil
	}))
}

// servedUntilCancel makes the initialization succeed and stops the instance right away.
func servedUntilCancel(p *startupmock.MockPipeline, cancel context.CancelFunc) {
	p.On("Run", mock.Anything).Once().Run(func(mock.Arguments) { cancel() }).Return(&pipeline.Result{}, nil)
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config startup.ServiceConfig
		expErr bool
	}{
		"Missing registry should fail": {
			config: startup.ServiceConfig{},
			expErr: true,
		},
		"Missing pipeline factory should fail": {
			config: startup.ServiceConfig{
				Registry:    gamemode.NewDefaultRegistry(),
				Settings:    &settings.Store{},
				Shell:       &startupmock.MockShell{},
				Coordinator: &instance.Coordinator{},
			},
			expErr: true,
		},
		"A complete config should create the service": {
			config: startup.ServiceConfig{
				Registry:    gamemode.NewDefaultRegistry(),
				Settings:    &settings.Store{},
				Shell:       &startupmock.MockShell{},
				Coordinator: &instance.Coordinator{},
				Pipelines:   func(model.Descriptor) (startup.Pipeline, error) { return nil, nil },
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := startup.NewService(test.config)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRunOwner(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	f := newFixture(t)
	f.setDefaultMode(t, "skyrim")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	servedUntilCancel(f.pipeline("skyrim"), cancel)

	outcome, err := f.service(t, nil).Run(ctx, model.Intent{})
	require.NoError(err)
	assert.Equal(startup.OutcomeServed, outcome)
	assert.Equal([]string{"skyrim"}, f.ran)

	// The game mode is free again.
	lk, err := f.locker.TryAcquire("modkeeper-skyrim-GameModeMutex")
	require.NoError(err)
	assert.NoError(lk.Release())
	f.shell.AssertExpectations(t)
}

func TestServiceRunOwnerQueuesItsOwnItem(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	item, err := model.ParseItemURI("nxm://skyrimse/mods/12/files/34")
	require.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := f.shell.On("Execute", mock.Anything, model.AddItemCommand(item.Raw)).Once().Return(nil)
	p := f.pipeline("skyrimse")
	p.On("Run", mock.Anything).Once().Run(func(mock.Arguments) { cancel() }).Return(&pipeline.Result{}, nil).NotBefore(exec)

	outcome, err := f.service(t, nil).Run(ctx, model.Intent{Item: &item})
	require.NoError(err)
	assert.Equal(t, startup.OutcomeServed, outcome)
	f.shell.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestServiceRunKeepsTheQueuedItemAcrossRestarts(t *testing.T) {
	tests := map[string]struct {
		firstErr   error
		selected   string
		expRan     []string
		expPending []int
	}{
		"Rescanning the installation should keep the item queued once": {
			firstErr:   model.ErrRescanInstances,
			expRan:     []string{"skyrim", "skyrim"},
			expPending: []int{1, 1},
		},
		"Changing to another game mode should drop the item": {
			firstErr:   model.ErrChangeDefaultMode,
			selected:   "fallout4",
			expRan:     []string{"skyrim", "fallout4"},
			expPending: []int{1, 0},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			f := newFixture(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			loop, err := ui.NewLoop(ui.LoopConfig{})
			require.NoError(err)
			loopCtx, stopLoop := context.WithCancel(context.Background())
			go func() { _ = loop.Run(loopCtx) }()
			defer func() {
				stopLoop()
				<-loop.Done()
			}()

			presenter := &uimock.MockPresenter{}
			presenter.On("SelectMode", mock.Anything, mock.Anything).Maybe().Return(test.selected, nil)
			shell, err := ui.NewShell(ui.ShellConfig{Loop: loop, Presenter: presenter})
			require.NoError(err)
			f.sink = shell

			var pending []int
			f.pipeline(test.expRan[0]).On("Run", mock.Anything).Once().Run(func(mock.Arguments) {
				pending = append(pending, shell.Pending())
			}).Return(nil, test.firstErr)
			f.pipeline(test.expRan[1]).On("Run", mock.Anything).Once().Run(func(mock.Arguments) {
				pending = append(pending, shell.Pending())
				cancel()
			}).Return(&pipeline.Result{}, nil)

			item, err := model.ParseItemURI("nxm://skyrim/mods/1/files/2")
			require.NoError(err)
			outcome, err := f.service(t, nil).Run(ctx, model.Intent{Item: &item})
			require.NoError(err)
			assert.Equal(startup.OutcomeServed, outcome)
			assert.Equal(test.expRan, f.ran)
			assert.Equal(test.expPending, pending)
		})
	}
}

type fakeMessenger struct {
	added []string
	front int
}

func (m *fakeMessenger) AddItem(ctx context.Context, id string) error {
	m.added = append(m.added, id)
	return nil
}
func (m *fakeMessenger) BringToFront(ctx context.Context) error { m.front++; return nil }
func (m *fakeMessenger) Close() error                           { return nil }

func TestServiceRunForwarded(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	f := newFixture(t)
	item, err := model.ParseItemURI("nxm://fallout4/mods/1/files/2")
	require.NoError(err)

	messenger := &fakeMessenger{}
	coordinator, err := instance.NewCoordinator(instance.CoordinatorConfig{
		Locker:    instance.LockerFunc(func(string) (instance.Lock, error) { return nil, lock.ErrLocked }),
		Dialer:    instance.DialerFunc(func(context.Context, ipc.Address) (instance.Messenger, error) { return messenger, nil }),
		SocketDir: f.socketDir,
	})
	require.NoError(err)

	outcome, err := f.service(t, coordinator).Run(context.Background(), model.Intent{Item: &item})
	require.NoError(err)
	assert.Equal(startup.OutcomeForwarded, outcome)
	assert.Equal([]string{item.Raw}, messenger.added)
	assert.Empty(f.ran)
}

func TestServiceRunSelectsMode(t *testing.T) {
	tests := map[string]struct {
		prepare    func(f *fixture, cancel context.CancelFunc)
		expOutcome startup.Outcome
		expDefault string
		expRan     []string
	}{
		"Without default mode the user should select one and it should be remembered": {
			prepare: func(f *fixture, cancel context.CancelFunc) {
				f.shell.On("SelectMode", mock.Anything, mock.Anything).Once().Return("fallout4", nil)
				servedUntilCancel(f.pipeline("fallout4"), cancel)
			},
			expOutcome: startup.OutcomeServed,
			expDefault: "fallout4",
			expRan:     []string{"fallout4"},
		},
		"A cancelled selection should end the launch": {
			prepare: func(f *fixture, cancel context.CancelFunc) {
				f.shell.On("SelectMode", mock.Anything, mock.Anything).Once().Return("", model.ErrUserCancelled)
			},
			expOutcome: startup.OutcomeCancelled,
		},
		"Changing the mode should select a new default mode and initialize it": {
			prepare: func(f *fixture, cancel context.CancelFunc) {
				f.setDefaultModeNoT("skyrim")
				f.pipeline("skyrim").On("Run", mock.Anything).Once().Return(nil, fmt.Errorf("resolve-install-path: %w", model.ErrChangeDefaultMode))
				f.shell.On("SelectMode", mock.Anything, mock.Anything).Once().Return("oblivion", nil)
				servedUntilCancel(f.pipeline("oblivion"), cancel)
			},
			expOutcome: startup.OutcomeServed,
			expDefault: "oblivion",
			expRan:     []string{"skyrim", "oblivion"},
		},
		"Cancelling the new mode selection should end the launch without default mode": {
			prepare: func(f *fixture, cancel context.CancelFunc) {
				f.setDefaultModeNoT("skyrim")
				f.pipeline("skyrim").On("Run", mock.Anything).Once().Return(nil, model.ErrChangeDefaultMode)
				f.shell.On("SelectMode", mock.Anything, mock.Anything).Once().Return("", model.ErrUserCancelled)
			},
			expOutcome: startup.OutcomeCancelled,
			expRan:     []string{"skyrim"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			f := newFixture(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			test.prepare(f, cancel)

			outcome, err := f.service(t, nil).Run(ctx, model.Intent{})
			require.NoError(err)
			assert.Equal(test.expOutcome, outcome)
			assert.Equal(test.expDefault, f.settings.Get().DefaultMode)
			assert.Equal(test.expRan, f.ran)
			f.shell.AssertExpectations(t)
		})
	}
}

func (f *fixture) setDefaultModeNoT(modeID string) {
	_ = f.settings.Update(context.Background(), func(s *settings.Settings) error {
		s.DefaultMode = modeID
		return nil
	})
}

func TestServiceRunRescanForgetsInstallPath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(f.settings.UpdateMode(ctx, "skyrim", func(m *settings.ModeSettings) { m.InstallPath = "/games/old" }))

	f.pipeline("skyrim").On("Run", mock.Anything).Once().Return(nil, model.ErrRescanInstances)
	second := f.pipeline("skyrim")
	second.On("Run", mock.Anything).Once().Run(func(mock.Arguments) {
		// The path is forgotten before initializing again.
		assert.Empty(f.settings.Get().Mode("skyrim").InstallPath)
		cancel()
	}).Return(&pipeline.Result{}, nil)

	outcome, err := f.service(t, nil).Run(ctx, model.Intent{ModeID: "skyrim"})
	require.NoError(err)
	assert.Equal(startup.OutcomeServed, outcome)
	assert.Equal([]string{"skyrim", "skyrim"}, f.ran)
	second.AssertExpectations(t)
}

func TestServiceRunFailures(t *testing.T) {
	tests := map[string]struct {
		intent     model.Intent
		prepare    func(f *fixture)
		expOutcome startup.Outcome
		expErr     error
	}{
		"A cancelled initialization should end silently": {
			intent: model.Intent{ModeID: "skyrim"},
			prepare: func(f *fixture) {
				f.pipeline("skyrim").On("Run", mock.Anything).Once().Return(nil, fmt.Errorf("first-run-setup: %w", model.ErrUserCancelled))
			},
			expOutcome: startup.OutcomeCancelled,
		},
		"A configuration error should be shown to the user": {
			intent: model.Intent{ModeID: "skyrim"},
			prepare: func(f *fixture) {
				f.pipeline("skyrim").On("Run", mock.Anything).Once().Return(nil, fmt.Errorf("init-mode: TESV.exe not found: %w", model.ErrConfiguration))
				f.shell.On("ShowMessage", mock.Anything, ui.MessageError, "Configuration problem", "init-mode: TESV.exe not found: configuration error").Once().Return(nil)
			},
			expErr: model.ErrConfiguration,
		},
		"A fatal error should be shown with the trace path": {
			intent: model.Intent{ModeID: "skyrim"},
			prepare: func(f *fixture) {
				f.pipeline("skyrim").On("Run", mock.Anything).Once().Return(nil, fmt.Errorf("services: database corrupted"))
				msg := "services: database corrupted\n\nThe diagnostic trace is in /data/traces/20261019-083000.log"
				f.shell.On("ShowMessage", mock.Anything, ui.MessageError, "Unexpected error", msg).Once().Return(nil)
			},
			expErr: nil,
		},
		"An unknown game mode should be a configuration error": {
			intent: model.Intent{ModeID: "morrowind"},
			prepare: func(f *fixture) {
				f.shell.On("ShowMessage", mock.Anything, ui.MessageError, "Configuration problem", mock.Anything).Once().Return(nil)
			},
			expErr: model.ErrConfiguration,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			f := newFixture(t)
			test.prepare(f)

			outcome, err := f.service(t, nil).Run(context.Background(), test.intent)
			switch {
			case test.expOutcome != "":
				assert.NoError(err)
				assert.Equal(test.expOutcome, outcome)
			case test.expErr != nil:
				assert.ErrorIs(err, test.expErr)
			default:
				assert.Error(err)
			}
			f.shell.AssertExpectations(t)
		})
	}
}
