// Package writeaccess checks that paths can really be written by the process.
//
// Some platforms silently redirect writes on protected folders to a per user virtual
// store, the write looks successful but the real folder is untouched. The check detects
// that redirection besides plain permission errors.
package writeaccess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

const markerPrefix = ".modkeeper-write-check-"

// CheckerConfig is the configuration of the write access checker.
type CheckerConfig struct {
	// VirtualStoreDir is where the platform redirects protected writes, empty when the
	// platform doesn't redirect. Defaults to the platform one.
	VirtualStoreDir *string
	// CreateFile creates the marker file, defaults to os.Create.
	CreateFile func(path string) (*os.File, error)
	// RemoveFile removes the marker file, defaults to os.Remove.
	RemoveFile func(path string) error
	Logger     log.Logger
}

func (c *CheckerConfig) defaults() error {
	if c.VirtualStoreDir == nil {
		dir := platformVirtualStoreDir()
		c.VirtualStoreDir = &dir
	}
	if c.CreateFile == nil {
		c.CreateFile = os.Create
	}
	if c.RemoveFile == nil {
		c.RemoveFile = os.Remove
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "writeaccess.Checker"})
	return nil
}

// Checker checks write access on paths.
type Checker struct {
	virtualStoreDir string
	createFile      func(path string) (*os.File, error)
	removeFile      func(path string) error
	logger          log.Logger
}

// NewChecker returns a new write access checker.
func NewChecker(cfg CheckerConfig) (*Checker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Checker{
		virtualStoreDir: *cfg.VirtualStoreDir,
		createFile:      cfg.CreateFile,
		removeFile:      cfg.RemoveFile,
		logger:          cfg.Logger,
	}, nil
}

// Check returns a model.ErrPrivilege error with a remediation message if the path, or the
// nearest existing directory above it when it doesn't exist yet, can't be written for real.
func (c *Checker) Check(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("path is required: %w", model.ErrNotValid)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("could not resolve path %q: %w", path, err)
	}

	dir, err := nearestExistingDir(abs)
	if err != nil {
		return err
	}

	marker := filepath.Join(dir, markerPrefix+ulid.Make().String())
	f, err := c.createFile(marker)
	if err != nil {
		c.logger.Warningf("Could not create marker file on %s: %s", dir, err)
		return privilegeError(path, dir, "the folder can't be written")
	}
	created := f.Name()

	verr := c.verifyMarker(path, dir, marker, f)
	if err := c.removeMarkers(created, marker); err != nil {
		c.logger.Warningf("Could not remove marker file on %s: %s", dir, err)
		if verr == nil {
			return privilegeError(path, dir, "files can't be deleted from the folder")
		}
	}
	if verr != nil {
		return verr
	}

	c.logger.Debugf("Write access to %s verified", dir)
	return nil
}

// verifyMarker checks the marker file was written at its real path.
func (c *Checker) verifyMarker(path, dir, marker string, f *os.File) error {
	_, werr := f.WriteString("modkeeper")
	createdInfo, serr := f.Stat()
	cerr := f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		c.logger.Warningf("Could not write marker file on %s: %s", dir, err)
		return privilegeError(path, dir, "the folder can't be written")
	}

	realInfo, err := os.Stat(marker)
	if err != nil || !os.SameFile(createdInfo, realInfo) {
		c.logger.Warningf("Marker file %s was not created at its real path", marker)
		return privilegeError(path, dir, "writes to the folder are being redirected")
	}

	if shadow := c.shadowPath(marker); shadow != "" {
		if _, err := os.Stat(shadow); err == nil {
			if err := c.removeFile(shadow); err != nil {
				c.logger.Warningf("Could not remove shadow marker %s: %s", shadow, err)
			}
			c.logger.Warningf("Marker file %s appeared in the virtual store at %s", marker, shadow)
			return privilegeError(path, dir, "writes to the folder are being redirected to the virtual store")
		}
	}

	return nil
}

// removeMarkers removes the created marker and the one at its real path when the write
// was redirected. Markers already gone are not errors.
func (c *Checker) removeMarkers(created, marker string) error {
	paths := []string{created}
	if created != marker {
		paths = append(paths, marker)
	}

	var errs []error
	for _, p := range paths {
		if err := c.removeFile(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// shadowPath returns where the platform would place a redirected copy of path.
func (c *Checker) shadowPath(path string) string {
	if c.virtualStoreDir == "" {
		return ""
	}
	rel := strings.TrimPrefix(path, filepath.VolumeName(path))
	return filepath.Join(c.virtualStoreDir, rel)
}

func nearestExistingDir(path string) (string, error) {
	current := path
	for {
		info, err := os.Stat(current)
		switch {
		case err == nil && info.IsDir():
			return current, nil
		case err == nil:
			// A file, its parent is the directory to check.
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("could not stat %q: %w", current, errors.Join(err, model.ErrPrivilege))
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing directory above %q: %w", path, model.ErrConfiguration)
		}
		current = parent
	}
}

func privilegeError(path, dir, reason string) error {
	return fmt.Errorf("%s is not writable, %s (checked %s). Run the application with enough privileges or move the folder out of protected locations: %w", path, reason, dir, model.ErrPrivilege)
}

// PathCheck is a path to check identified for reporting.
type PathCheck struct {
	ID   string
	Path string
}

// Results runs the checks and returns the results in the same order.
func (c *Checker) Results(ctx context.Context, checks []PathCheck) []model.CheckResult {
	results := make([]model.CheckResult, 0, len(checks))
	for _, pc := range checks {
		err := c.Check(ctx, pc.Path)
		switch {
		case err == nil:
			results = append(results, model.CheckResult{ID: pc.ID, Status: model.CheckStatusOK, Message: fmt.Sprintf("%s is writable", pc.Path)})
		case errors.Is(err, model.ErrPrivilege):
			results = append(results, model.CheckResult{ID: pc.ID, Status: model.CheckStatusError, Message: err.Error()})
		default:
			results = append(results, model.CheckResult{ID: pc.ID, Status: model.CheckStatusWarning, Message: err.Error()})
		}
	}
	return results
}
