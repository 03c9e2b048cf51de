package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/storage/memory"
)

func TestRepositoryCRUD(t *testing.T) {
	base := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	item := func(id, mode string, offset time.Duration) model.InstalledItem {
		return model.InstalledItem{ID: id, ModeID: mode, Name: id, Path: "/mods/" + id, InstalledAt: base.Add(offset)}
	}

	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  bool
	}{
		"Creating an item should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateInstalledItem(ctx, item("i1", "skyrim", 0)))

				items, err := repo.ListInstalledItems(ctx, "skyrim")
				require.NoError(t, err)
				require.Len(t, items, 1)
				assert.Equal(t, "i1", items[0].ID)
				return nil
			},
		},

		"Creating duplicate ID should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateInstalledItem(ctx, item("i1", "skyrim", 0)))
				err := repo.CreateInstalledItem(ctx, item("i1", "skyrim", 0))
				assert.ErrorIs(t, err, model.ErrAlreadyExists)
				return err
			},
			expErr: true,
		},

		"Listing should be scoped by mode and sorted by install time": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateInstalledItem(ctx, item("late", "skyrim", time.Hour)))
				require.NoError(t, repo.CreateInstalledItem(ctx, item("early", "skyrim", 0)))
				require.NoError(t, repo.CreateInstalledItem(ctx, item("other", "fallout4", 0)))

				items, err := repo.ListInstalledItems(ctx, "skyrim")
				require.NoError(t, err)
				require.Len(t, items, 2)
				assert.Equal(t, "early", items[0].ID)
				assert.Equal(t, "late", items[1].ID)
				return nil
			},
		},

		"Updating a missing item should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.UpdateInstalledItem(ctx, item("missing", "skyrim", 0))
				assert.ErrorIs(t, err, model.ErrNotFound)
				return err
			},
			expErr: true,
		},

		"Deleting mode items should only delete that mode": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateInstalledItem(ctx, item("i1", "skyrim", 0)))
				require.NoError(t, repo.CreateInstalledItem(ctx, item("i2", "fallout4", 0)))
				require.NoError(t, repo.DeleteModeItems(ctx, "skyrim"))

				sk, err := repo.ListInstalledItems(ctx, "skyrim")
				require.NoError(t, err)
				assert.Empty(t, sk)
				fo, err := repo.ListInstalledItems(ctx, "fallout4")
				require.NoError(t, err)
				assert.Len(t, fo, 1)
				return repo.DeleteInstalledItem(ctx, "i1")
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
