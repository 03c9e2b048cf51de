// Package trace records every log entry of a run in a diagnostic file that is kept only
// when it's asked for or the run fails.
package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampLayout = "20060102-150405"

// FileConfig is the configuration of the trace file.
type FileConfig struct {
	Dir string
	// Keep keeps the file on close even if the run succeeded.
	Keep bool
	Now  func() time.Time
}

func (c *FileConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// File is a logrus hook that writes every entry to the trace file.
type File struct {
	path      string
	keep      bool
	formatter logrus.Formatter

	mu     sync.Mutex
	file   *os.File
	failed bool
	closed bool
}

var _ logrus.Hook = &File{}

// NewFile creates the trace file.
func NewFile(cfg FileConfig) (*File, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create traces dir: %w", err)
	}

	path := filepath.Join(cfg.Dir, cfg.Now().UTC().Format(timestampLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not create trace file: %w", err)
	}

	return &File{
		path:      path,
		keep:      cfg.Keep,
		formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true},
		file:      f,
	}, nil
}

// Path returns the trace file path.
func (f *File) Path() string { return f.path }

func (f *File) Levels() []logrus.Level { return logrus.AllLevels }

func (f *File) Fire(e *logrus.Entry) error {
	b, err := f.formatter.Format(e)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	if e.Level <= logrus.ErrorLevel {
		f.failed = true
	}
	_, err = f.file.Write(b)
	return err
}

// MarkFailed keeps the file on close.
func (f *File) MarkFailed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
}

// Close closes the trace file and removes it unless it was asked to be kept or an error
// was logged. It returns true when the file was kept.
func (f *File) Close() (kept bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.keep || f.failed, nil
	}
	f.closed = true

	if err := f.file.Close(); err != nil {
		return false, fmt.Errorf("could not close trace file: %w", err)
	}

	if f.keep || f.failed {
		return true, nil
	}
	if err := os.Remove(f.path); err != nil {
		return false, fmt.Errorf("could not remove trace file: %w", err)
	}
	return false, nil
}
