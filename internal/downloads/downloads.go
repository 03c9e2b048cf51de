// Package downloads hands the added items to the download manager through request files
// in the mods directory.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

const requestExt = ".nxm"

// QueueConfig is the configuration of the download queue.
type QueueConfig struct {
	Dir    string
	Logger log.Logger
}

func (c *QueueConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "downloads.Queue"})
	return nil
}

// Queue stores download requests as files.
type Queue struct {
	dir    string
	logger log.Logger
}

// NewQueue returns a new download queue.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Queue{dir: cfg.Dir, logger: cfg.Logger}, nil
}

// Path returns the request file path of an item, it's always a direct child of the queue dir.
func (q *Queue) Path(item model.ItemURI) (string, error) {
	name := item.FileName() + requestExt
	path := filepath.Join(q.dir, name)

	rel, err := filepath.Rel(q.dir, path)
	if err != nil || rel != name || filepath.Base(rel) != rel {
		return "", fmt.Errorf("item %q escapes the download dir: %w", item.Raw, model.ErrNotValid)
	}
	return path, nil
}

// Exists returns true if the item was already requested.
func (q *Queue) Exists(ctx context.Context, item model.ItemURI) (bool, error) {
	path, err := q.Path(item)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("could not stat download request: %w", err)
}

// Enqueue writes the download request. An existing request is only replaced when replace is set.
func (q *Queue) Enqueue(ctx context.Context, item model.ItemURI, replace bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if replace {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	path, err := q.Path(item)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("download request for %q: %w", item.Raw, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not create download request: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(item.Raw + "\n"); err != nil {
		return fmt.Errorf("could not write download request: %w", err)
	}

	q.logger.Infof("Download requested for %s", item.Raw)
	return nil
}
