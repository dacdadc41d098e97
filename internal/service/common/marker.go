//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/reqcheck/internal/config"
	"github.com/oshokin/reqcheck/internal/logger"
)

// ErrAlreadyRunning is returned when another reqcheck run holds the marker.
var ErrAlreadyRunning = errors.New("another reqcheck run is in progress")

const (
	// markerLifetime is the period after which an unreadable marker is considered stale.
	markerLifetime = 30 * time.Second
	// markerDirPermissions keeps the marker directory private to the user.
	markerDirPermissions = 0o700
)

//nolint:gochecknoglobals // Replaced in tests to simulate markers that cannot be removed.
var removeFile = os.Remove

// AcquireMarker creates the run marker at path holding the current PID.
// A marker left by a process that is no longer running reqcheck is replaced.
// A marker that cannot be inspected or removed is reported as ErrAlreadyRunning.
// The returned release function removes the marker if it still belongs to this process.
func AcquireMarker(ctx context.Context, path string) (func(), error) {
	ctx = logger.WithName(ctx, "marker")

	logger.DebugKV(ctx, "Checking for the presence of a run marker", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), markerDirPermissions); err != nil {
		return nil, fmt.Errorf("create run marker directory: %w", err)
	}

	if err := checkExistingMarker(ctx, path); err != nil {
		return nil, err
	}

	pid := os.Getpid()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, config.DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: marker %s appeared concurrently", ErrAlreadyRunning, path)
		}

		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: marker %s is not writable: %w", ErrAlreadyRunning, path, err)
		}

		return nil, fmt.Errorf("create run marker: %w", err)
	}

	_, err = file.WriteString(strconv.Itoa(pid))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write run marker: %w", err)
	}

	release := func() {
		owner, readErr := readMarkerPID(path)
		if readErr != nil || owner != pid {
			logger.Debugf(ctx, "Run marker %s is no longer ours, leaving it", path)

			return
		}

		if removeErr := removeFile(path); removeErr != nil {
			logger.Warnf(ctx, "Unable to remove run marker %s: %v", path, removeErr)
		}
	}

	return release, nil
}

// checkExistingMarker returns ErrAlreadyRunning for a live marker and removes a stale one.
func checkExistingMarker(ctx context.Context, path string) error {
	fileInfo, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: marker %s cannot be inspected: %w", ErrAlreadyRunning, path, err)
	}

	pid, err := readMarkerPID(path)
	if err != nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return fmt.Errorf("%w: marker %s is being written", ErrAlreadyRunning, path)
		}

		logger.Infof(ctx, "The run marker is unreadable and too old (%v), replacing it", err)

		return removeMarker(ctx, path)
	}

	alive, err := isReqcheckProcess(pid)
	if err != nil {
		return fmt.Errorf("inspect marker owner: %w", err)
	}

	if alive {
		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
	}

	logger.InfoKV(ctx, "The run marker is stale, replacing it", "pid", pid)

	return removeMarker(ctx, path)
}

// isReqcheckProcess reports whether pid is a running process with the same executable as this one.
func isReqcheckProcess(pid int) (bool, error) {
	if pid == os.Getpid() {
		return false, nil
	}

	owner, err := ps.FindProcess(pid)
	if err != nil || owner == nil {
		return false, err
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil || self == nil {
		return false, err
	}

	return owner.Executable() == self.Executable(), nil
}

func readMarkerPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		return 0, fmt.Errorf("parse marker pid: %w", err)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("parse marker pid: invalid pid %d", pid)
	}

	return pid, nil
}

// removeMarker deletes a stale marker. A marker that cannot be deleted, for
// example one owned by another user, blocks the run like a live one.
func removeMarker(ctx context.Context, path string) error {
	err := removeFile(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	logger.Warnf(ctx, "Unable to remove stale run marker %s: %v", path, err)

	return fmt.Errorf("%w: stale marker %s cannot be removed: %w", ErrAlreadyRunning, path, err)
}
