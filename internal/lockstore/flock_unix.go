//go:build linux || darwin

package lockstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is a held cross-process advisory lock on a sidecar file.
type fileLock struct {
	f *os.File
}

// acquireFileLock takes an exclusive, non-blocking flock on a sidecar file
// named after key's hash inside lockDir.
func acquireFileLock(lockDir, key string) (*fileLock, error) {
	path := lockFileName(lockDir, key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open lock sidecar: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &fileLock{f: f}, nil
}

func (fl *fileLock) release() {
	if fl == nil || fl.f == nil {
		return
	}
	unix.Flock(int(fl.f.Fd()), unix.LOCK_UN)
	fl.f.Close()
}
