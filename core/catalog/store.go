package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var (
	// ErrCorrupt is returned when the persisted snapshot cannot be parsed.
	ErrCorrupt = errors.New("catalog snapshot is corrupt")
	// ErrLocked is returned when another process holds the data directory lock.
	ErrLocked = errors.New("catalog data directory is locked by another process")
)

const lockFileName = ".catalog.lock"

// SnapshotStore persists the whole catalog as one JSON array.
// Writes go to a temporary file that is synced and renamed over the snapshot,
// so a crash leaves either the old or the new file, never a mix.
type SnapshotStore struct {
	dir  string
	path string
	lock *flock.Flock
}

// NewSnapshotStore creates a store for dir/file. The directory is created on first write.
func NewSnapshotStore(dir, file string) *SnapshotStore {
	return &SnapshotStore{
		dir:  dir,
		path: filepath.Join(dir, file),
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}
}

// Dir returns the data directory.
func (s *SnapshotStore) Dir() string {
	return s.dir
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Exists reports whether a snapshot file is present.
func (s *SnapshotStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the snapshot. A missing file yields an empty slice and no error.
func (s *SnapshotStore) Load() ([]Record, error) {
	//nolint:gosec // path is built from configuration, not request input
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}
	return Decode(data)
}

// Bytes returns the raw snapshot document, or nil when none exists.
func (s *SnapshotStore) Bytes() ([]byte, error) {
	//nolint:gosec // path is built from configuration
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot document.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Encode renders records as the snapshot document.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog snapshot: %w", err)
	}
	return data, nil
}

// Save replaces the snapshot wholesale.
func (s *SnapshotStore) Save(records []Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	return s.WriteRaw(data)
}

// WriteRaw atomically replaces the snapshot with an already encoded document.
func (s *SnapshotStore) WriteRaw(data []byte) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temporary snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temporary snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace catalog snapshot: %w", err)
	}

	// Persist the rename itself.
	if dir, err := os.Open(s.dir); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

// Lock takes the data directory lock without blocking. The returned function releases it.
func (s *SnapshotStore) Lock() (func(), error) {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() { _ = s.lock.Unlock() }, nil
}
