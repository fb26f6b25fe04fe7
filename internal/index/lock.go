package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// LockFileName is created in the data directory while a pass runs.
const LockFileName = "index.lock"

// fileLock is a cross-process exclusive lock so two indexing passes over
// the same data directory never interleave.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(dataDir string) *fileLock {
	path := filepath.Join(dataDir, LockFileName)
	return &fileLock{path: path, flock: flock.New(path)}
}

// tryLock acquires the lock without blocking. A lock held elsewhere is
// reported as ErrCodeIndexLocked.
func (l *fileLock) tryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return cerrors.New(cerrors.ErrCodeIndexLocked, "another indexing pass holds "+l.path, nil).
			WithSuggestion("wait for it to finish or remove a stale lock file")
	}
	l.locked = true
	return nil
}

// unlock is safe to call when the lock is not held.
func (l *fileLock) unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
