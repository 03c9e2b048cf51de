// Package lock has system wide named exclusive locks backed by lock files.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/slok/modkeeper/internal/log"
)

// ErrLocked is returned when the lock is held by someone else.
var ErrLocked = errors.New("lock is held")

// LockerConfig is the configuration of the locker.
type LockerConfig struct {
	Dir    string
	Logger log.Logger
}

func (c *LockerConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lock.Locker"})
	return nil
}

// Locker acquires named locks.
type Locker struct {
	dir    string
	logger log.Logger
}

// NewLocker returns a new locker.
func NewLocker(cfg LockerConfig) (*Locker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Locker{dir: cfg.Dir, logger: cfg.Logger}, nil
}

// TryAcquire acquires the named lock without blocking. It returns ErrLocked if the lock
// is held, by this or any other process.
func (l *Locker) TryAcquire(name string) (*Lock, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid lock name %q", name)
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create lock directory: %w", err)
	}

	path := filepath.Join(l.dir, name+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open lock file: %w", err)
	}

	if err := tryLock(f); err != nil {
		f.Close()
		return nil, err
	}

	// The owner PID is informative only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	l.logger.Debugf("Lock %s acquired", name)
	return &Lock{name: name, f: f, logger: l.logger}, nil
}

// Lock is a held lock.
type Lock struct {
	name   string
	f      *os.File
	logger log.Logger
	once   sync.Once
	err    error
}

// Name returns the lock name.
func (l *Lock) Name() string { return l.name }

// Release releases the lock, it is safe to call multiple times.
func (l *Lock) Release() error {
	l.once.Do(func() {
		uerr := unlock(l.f)
		cerr := l.f.Close()
		l.err = errors.Join(uerr, cerr)
		if l.err != nil {
			l.logger.Warningf("Lock %s released with errors: %s", l.name, l.err)
			return
		}
		l.logger.Debugf("Lock %s released", l.name)
	})
	return l.err
}
