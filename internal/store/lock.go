package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// DirLock is an exclusive cross-process lock on a data directory, so two
// rolodex processes never write the same contact database.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock at <dir>/.rolodex.lock.
func NewDirLock(dir string) *DirLock {
	lockPath := filepath.Join(dir, ".rolodex.lock")
	return &DirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock without blocking. It fails with ERR_204_LOCKED
// when another process holds it.
func (l *DirLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return rerrors.New(rerrors.ErrCodeLocked, "data directory is in use", nil).
			WithDetail("lock", l.path).
			WithSuggestion("stop the other rolodex process or point storage.data_dir elsewhere")
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *DirLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}
