package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	items  map[string]model.InstalledItem
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		items:  make(map[string]model.InstalledItem),
		logger: cfg.Logger,
	}, nil
}

// CreateInstalledItem stores a new installed item.
func (r *Repository) CreateInstalledItem(ctx context.Context, item model.InstalledItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; ok {
		return fmt.Errorf("installed item with id %s: %w", item.ID, model.ErrAlreadyExists)
	}

	r.items[item.ID] = item
	r.logger.Debugf("Created installed item in repository: %s", item.ID)
	return nil
}

// ListInstalledItems returns the installed items of a game mode.
func (r *Repository) ListInstalledItems(ctx context.Context, modeID string) ([]model.InstalledItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []model.InstalledItem
	for _, item := range r.items {
		if item.ModeID == modeID {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].InstalledAt.Equal(items[j].InstalledAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].InstalledAt.Before(items[j].InstalledAt)
	})

	return items, nil
}

// UpdateInstalledItem updates an existing installed item.
func (r *Repository) UpdateInstalledItem(ctx context.Context, item model.InstalledItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return fmt.Errorf("installed item %s: %w", item.ID, model.ErrNotFound)
	}

	r.items[item.ID] = item
	r.logger.Debugf("Updated installed item in repository: %s", item.ID)
	return nil
}

// DeleteInstalledItem deletes an installed item.
func (r *Repository) DeleteInstalledItem(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("installed item %s: %w", id, model.ErrNotFound)
	}

	delete(r.items, id)
	r.logger.Debugf("Deleted installed item from repository: %s", id)
	return nil
}

// DeleteModeItems deletes every installed item of a game mode.
func (r *Repository) DeleteModeItems(ctx context.Context, modeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, item := range r.items {
		if item.ModeID == modeID {
			delete(r.items, id)
		}
	}
	return nil
}
