// Package lock implements the advisory run-lock shared by every slnstrip
// process working in the same directory.
//
// The lock is an empty sentinel file. Its existence means "a cleaner is
// active"; it is created with an exclusive create-if-absent open, so two
// processes racing for it cannot both succeed. The lock is not tied to the
// holder's lifetime: a process killed while holding it leaves a stale file
// behind that must be removed by hand (see Remove).
package lock

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	// ErrAlreadyLocked indicates another process holds the run-lock
	ErrAlreadyLocked = errors.New("already running")

	// ErrNotHeld indicates Release was called on a lock that was already released
	ErrNotHeld = errors.New("run-lock not held")
)

// RunLock is a held run-lock. Only the process that acquired it may release it.
type RunLock struct {
	path     string
	mu       sync.Mutex
	released bool
}

// Acquire creates the sentinel at path. It fails with ErrAlreadyLocked, and
// leaves the existing file untouched, when the sentinel already exists.
func Acquire(path string) (*RunLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: lock file %s exists", ErrAlreadyLocked, path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}
	return &RunLock{path: path}, nil
}

// Path returns the sentinel path
func (l *RunLock) Path() string {
	return l.path
}

// Release removes the sentinel. A sentinel that has already disappeared is
// not an error; releasing twice is.
func (l *RunLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return ErrNotHeld
	}
	l.released = true

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// With acquires the lock at path, runs fn and releases the lock on every
// exit path, including a panic in fn. A release failure is joined with fn's
// error.
func With(path string, fn func() error) (err error) {
	l, err := Acquire(path)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := l.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()

	return fn()
}

// IsLocked reports whether a sentinel exists at path
func IsLocked(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove deletes a sentinel regardless of who created it. It exists for
// manual recovery from a stale lock and must not be used by a running cleaner.
// It returns false when there was nothing to remove.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove lock file: %w", err)
}
