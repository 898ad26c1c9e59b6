// SPDX-License-Identifier: MPL-2.0

//go:build unix

package plugin

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// installLock is a blocking exclusive flock on <installs>/<plugin>/.<version>.lock.
// It serializes installs of one version across rtvm processes; the kernel
// drops the lock if the holder dies.
type installLock struct {
	file *os.File
}

func acquireInstallLock(path string) (*installLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &installLock{file: f}, nil
}

// Release unlocks and closes the lock file. Safe to call more than once.
func (l *installLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}
