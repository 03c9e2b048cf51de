package storage

import (
	"context"

	"github.com/slok/modkeeper/internal/model"
)

// Repository is the interface for the installed items persistence.
type Repository interface {
	CreateInstalledItem(ctx context.Context, item model.InstalledItem) error
	ListInstalledItems(ctx context.Context, modeID string) ([]model.InstalledItem, error)
	UpdateInstalledItem(ctx context.Context, item model.InstalledItem) error
	DeleteInstalledItem(ctx context.Context, id string) error
	DeleteModeItems(ctx context.Context, modeID string) error
}
