package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrLockTimeout indicates another process kept the settings file locked.
var ErrLockTimeout = errors.New("timed out waiting for settings lock")

// Store reads and writes settings.json under an advisory file lock.
type Store struct {
	Path        string
	LockTimeout time.Duration
}

// NewStore returns a store for the settings file at path.
func NewStore(path string) *Store {
	return &Store{Path: path, LockTimeout: 5 * time.Second}
}

func (s *Store) lock(ctx context.Context) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}
	fl := flock.New(s.Path + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, s.LockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("lock settings: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	return fl, nil
}

// Load decodes the settings file over DefaultSettings so leaves missing from
// the file keep their defaults. A missing file yields the defaults.
func (s *Store) Load(ctx context.Context) (*Settings, error) {
	fl, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	settings := DefaultSettings()
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", s.Path, err)
	}
	settings.normalize()
	return settings, nil
}

// Save writes settings atomically: temp file in the same directory, fsync, rename.
func (s *Store) Save(ctx context.Context, settings *Settings) error {
	fl, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	data, err := json.MarshalIndent(settings, "", "\t")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath) // Best effort cleanup
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
