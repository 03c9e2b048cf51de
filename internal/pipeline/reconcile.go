package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/slok/modkeeper/internal/bridge"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/storage"
	"github.com/slok/modkeeper/internal/task"
)

// ReconcileStats are the changes done to the installed items.
type ReconcileStats struct {
	Checked  int
	Removed  int
	Upgraded int
}

// reconcile runs the installed items reconciliation in its own cancellable task, mirroring
// its progress on the stage task.
func (p *Pipeline) reconcile(ctx context.Context, stageTask *task.Task, repo storage.Repository) (ReconcileStats, error) {
	sub, err := task.New(task.TaskConfig{
		Name:    "reconcile-installed-items",
		Tracker: p.cfg.Tracker,
		Logger:  p.logger,
		Run: func(ctx context.Context, t *task.Task, _ any) task.Result {
			stats, err := p.reconcileItems(ctx, t, repo)
			if err != nil {
				return task.Result{Status: task.StatusError, Message: err.Error(), Value: err}
			}
			return task.Completed(stats)
		},
	})
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("could not create the reconcile task: %w", err)
	}

	unsubscribe := sub.OnProgress(func(pr task.Progress) {
		if stageTask.Progress().ItemMax != pr.ItemMax {
			stageTask.SetItemMax(pr.ItemMax)
		}
		stageTask.SetItemMessage(pr.ItemMessage)
		stageTask.SetItemProgress(pr.ItemProgress)
	})
	defer unsubscribe()

	ended, err := bridge.StartAndWait(ctx, sub, nil)
	if err != nil {
		return ReconcileStats{}, err
	}
	if err := endedErr(ended); err != nil {
		return ReconcileStats{}, err
	}

	stats := ended.Value.(ReconcileStats)
	p.logger.Infof("Installed items reconciled: %d checked, %d removed, %d upgraded", stats.Checked, stats.Removed, stats.Upgraded)
	return stats, nil
}

func (p *Pipeline) reconcileItems(ctx context.Context, t *task.Task, repo storage.Repository) (ReconcileStats, error) {
	items, err := repo.ListInstalledItems(ctx, p.modeID())
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("could not list installed items: %w", err)
	}

	stats := ReconcileStats{}
	t.SetItemMax(len(items))
	for _, item := range items {
		if t.IsCancelling() || ctx.Err() != nil {
			return stats, model.ErrUserCancelled
		}
		t.SetItemMessage(item.Name)

		_, err := os.Stat(item.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := repo.DeleteInstalledItem(ctx, item.ID); err != nil {
				return stats, fmt.Errorf("could not remove vanished item %s: %w", item.ID, err)
			}
			stats.Removed++
			p.logger.Infof("Installed item %s removed, %s vanished", item.Name, item.Path)
		case err != nil:
			return stats, fmt.Errorf("could not check item %s: %w", item.ID, err)
		case item.FormatVersion < model.CurrentInstallFormatVersion:
			item.FormatVersion = model.CurrentInstallFormatVersion
			if err := repo.UpdateInstalledItem(ctx, item); err != nil {
				return stats, fmt.Errorf("could not upgrade item %s: %w", item.ID, err)
			}
			stats.Upgraded++
		}

		stats.Checked++
		t.StepItemProgress()
	}

	return stats, nil
}
