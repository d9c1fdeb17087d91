package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the store lock.
var ErrLocked = errors.New("store is locked by another process")

// Lock is an advisory exclusive lock on <store>.lock. It turns a second
// concurrent writer into an error instead of a lost update.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock for the store at storePath without blocking.
func AcquireLock(storePath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	fl := flock.New(storePath + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", fl.Path(), ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
