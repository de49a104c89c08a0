package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
	lockRetryDelay = 250 * time.Millisecond
)

// DBLock serializes writers of one SQLite menu database across processes.
type DBLock struct {
	lock *flock.Flock
	path string
}

// NewDBLock creates a lock next to the given database path and makes sure
// the database directory exists.
func NewDBLock(dbPath string) (*DBLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &DBLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

func (l *DBLock) Path() string { return l.path }

// Lock acquires the lock, waiting until ctx is done if another process
// holds it.
func (l *DBLock) Lock(ctx context.Context) error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if locked {
		return nil
	}

	Log.Warnf("Another menuscraper process is writing to the database, waiting for it to finish...")
	locked, err = l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s", l.path)
	}
	return nil
}

// Unlock releases the lock.
func (l *DBLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves the database path. An empty path means the default
// location under ~/.config/menuscraper.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "menuscraper", "menus.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
