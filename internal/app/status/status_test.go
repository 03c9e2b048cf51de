package status_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/app/status"
	"github.com/slok/modkeeper/internal/gamemode"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/storage/storagemock"
)

func TestService_Run(t *testing.T) {
	skyrim := model.Descriptor{Mode: model.GameMode{ID: "skyrim", Name: "Skyrim"}, Executable: "TESV.exe"}
	fallout := model.Descriptor{Mode: model.GameMode{ID: "fallout4", Name: "Fallout 4"}, Executable: "Fallout4.exe"}

	tests := map[string]struct {
		req         status.Request
		mock        func(m *storagemock.MockRepository)
		expStatuses []model.ModeStatus
		expErr      bool
	}{
		"All the modes should be returned": {
			req: status.Request{},
			mock: func(m *storagemock.MockRepository) {
				m.On("ListInstalledItems", mock.Anything, "fallout4").Once().Return(nil, nil)
				m.On("ListInstalledItems", mock.Anything, "skyrim").Once().Return([]model.InstalledItem{{ID: "1"}, {ID: "2"}}, nil)
			},
			expStatuses: []model.ModeStatus{
				{Mode: fallout.Mode},
				{Mode: skyrim.Mode, Default: true, InstallPath: "/games/skyrim", SetupCompleted: true, DataBytes: 5, Items: 2},
			},
		},
		"A single mode should be returned": {
			req: status.Request{ModeID: "skyrim"},
			mock: func(m *storagemock.MockRepository) {
				m.On("ListInstalledItems", mock.Anything, "skyrim").Once().Return(nil, nil)
			},
			expStatuses: []model.ModeStatus{
				{Mode: skyrim.Mode, Default: true, InstallPath: "/games/skyrim", SetupCompleted: true, DataBytes: 5},
			},
		},
		"An unknown mode should fail": {
			req:    status.Request{ModeID: "morrowind"},
			mock:   func(m *storagemock.MockRepository) {},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			dataDir := t.TempDir()
			mods := filepath.Join(dataDir, "modes", "skyrim", "mods")
			require.NoError(os.MkdirAll(mods, 0755))
			require.NoError(os.WriteFile(filepath.Join(mods, "a.nxm"), []byte("12345"), 0644))

			st, err := settings.NewStore(settings.StoreConfig{Path: filepath.Join(dataDir, "settings.yaml")})
			require.NoError(err)
			require.NoError(st.Update(context.Background(), func(s *settings.Settings) error {
				s.DefaultMode = "skyrim"
				s.Modes = map[string]settings.ModeSettings{"skyrim": {InstallPath: "/games/skyrim", SetupCompleted: true}}
				return nil
			}))

			registry, err := gamemode.NewRegistry(skyrim, fallout)
			require.NoError(err)

			repo := &storagemock.MockRepository{}
			test.mock(repo)

			svc, err := status.NewService(status.ServiceConfig{
				DataDir:    dataDir,
				Registry:   registry,
				Settings:   st,
				Repository: repo,
			})
			require.NoError(err)

			statuses, err := svc.Run(context.Background(), test.req)
			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
				assert.Equal(t, test.expStatuses, statuses)
			}
			repo.AssertExpectations(t)
		})
	}
}
