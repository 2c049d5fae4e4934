package cli

import (
	"floatfetch/internal/config"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

var (
	instanceLock   *flock.Flock
	instanceLockMu sync.Mutex
)

func lockPath() string {
	return filepath.Join(config.GetRuntimeDir(), "floatfetch.lock")
}

// AcquireLock takes the single-instance lock. It returns false when another
// floatfetch process already holds it.
func AcquireLock() (bool, error) {
	return acquireLockAt(lockPath())
}

func acquireLockAt(path string) (bool, error) {
	instanceLockMu.Lock()
	defer instanceLockMu.Unlock()

	if instanceLock != nil {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create runtime directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return false, err
	}
	if !locked {
		return false, nil
	}
	instanceLock = fl
	return true, nil
}

// ReleaseLock releases the single-instance lock if held.
func ReleaseLock() error {
	instanceLockMu.Lock()
	defer instanceLockMu.Unlock()

	if instanceLock == nil {
		return nil
	}
	err := instanceLock.Unlock()
	instanceLock = nil
	return err
}
