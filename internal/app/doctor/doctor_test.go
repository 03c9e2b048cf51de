package doctor_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/app/doctor"
	"github.com/slok/modkeeper/internal/gamemode"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/writeaccess"
)

type staticSettings settings.Settings

func (s staticSettings) Get() settings.Settings { return settings.Settings(s) }

type recordingChecker struct {
	checks []writeaccess.PathCheck
}

func (r *recordingChecker) Results(ctx context.Context, checks []writeaccess.PathCheck) []model.CheckResult {
	r.checks = append(r.checks, checks...)
	res := make([]model.CheckResult, 0, len(checks))
	for _, c := range checks {
		status := model.CheckStatusOK
		if c.ID == "install_path" {
			status = model.CheckStatusError
		}
		res = append(res, model.CheckResult{ID: c.ID, Status: status, Message: c.Path})
	}
	return res
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    doctor.ServiceConfig
		expErr bool
	}{
		"Valid config should create service": {
			cfg: doctor.ServiceConfig{DataDir: "/data", Registry: gamemode.NewDefaultRegistry(), Settings: staticSettings{}, Checker: &recordingChecker{}},
		},
		"Missing data dir should fail": {
			cfg:    doctor.ServiceConfig{Registry: gamemode.NewDefaultRegistry(), Settings: staticSettings{}, Checker: &recordingChecker{}},
			expErr: true,
		},
		"Missing checker should fail": {
			cfg:    doctor.ServiceConfig{DataDir: "/data", Registry: gamemode.NewDefaultRegistry(), Settings: staticSettings{}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := doctor.NewService(test.cfg)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	st := staticSettings{Modes: map[string]settings.ModeSettings{
		"skyrim": {InstallPath: "/games/skyrim"},
	}}

	tests := map[string]struct {
		req        doctor.Request
		expModes   []string
		expChecks  int
		expErrors  int
		expErrIs   error
		expFailure bool
	}{
		"Without mode only configured modes should be checked": {
			req:       doctor.Request{},
			expModes:  []string{"skyrim"},
			expChecks: 5,
			expErrors: 1,
		},
		"An explicit mode without install path should check its data dirs": {
			req:       doctor.Request{ModeID: "fallout4"},
			expModes:  []string{"fallout4"},
			expChecks: 4,
		},
		"An unknown mode should fail": {
			req:        doctor.Request{ModeID: "morrowind"},
			expFailure: true,
			expErrIs:   model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			checker := &recordingChecker{}
			svc, err := doctor.NewService(doctor.ServiceConfig{
				DataDir:  "/data",
				Registry: gamemode.NewDefaultRegistry(),
				Settings: st,
				Checker:  checker,
			})
			require.NoError(t, err)

			reports, err := svc.Run(context.Background(), test.req)
			if test.expFailure {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErrIs)
				return
			}
			require.NoError(t, err)

			var modes []string
			errs := 0
			for _, r := range reports {
				modes = append(modes, r.ModeID)
				errs += r.Errors()
			}
			assert.Equal(t, test.expModes, modes)
			assert.Len(t, checker.checks, test.expChecks)
			assert.Equal(t, test.expErrors, errs)
			assert.Contains(t, checker.checks[len(checker.checks)-1].Path, filepath.Join("/data", "modes"))
		})
	}
}
