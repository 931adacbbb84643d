// Package filelock serializes writers of shared output files (trained
// models, feature statistics) across processes.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Suffix is appended to a target path to form its lock path.
const Suffix = ".lock"

// FileLock is an exclusive advisory lock on a sidecar file.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// New returns an unlocked lock guarding target. The lock file lives next
// to target.
func New(target string) *FileLock {
	path := target + Suffix
	return &FileLock{flock: flock.New(path), path: path}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string { return fl.path }

// Lock blocks until the lock is held.
func (fl *FileLock) Lock() error {
	if dir := filepath.Dir(fl.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts the lock without blocking. It reports false when another
// holder has it.
func (fl *FileLock) TryLock() (bool, error) {
	ok, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock on %s: %w", fl.path, err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock on %s: %w", fl.path, err)
	}
	return nil
}

// With runs fn while holding the lock for target.
func With(target string, fn func() error) error {
	fl := New(target)
	if err := fl.Lock(); err != nil {
		return err
	}
	defer fl.Unlock()
	return fn()
}
