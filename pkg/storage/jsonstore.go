package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore persists named collections as JSON files under a base directory.
// It backs the portal when no remote database is configured and mirrors the
// storage credentials so they survive restarts. Writes are last-write-wins,
// guarded by a single mutex per store.
type JSONStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewJSONStore ensures the base directory exists and returns a handle.
func NewJSONStore(baseDir string) (*JSONStore, error) {
	if baseDir == "" {
		baseDir = "./data"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create local store directory: %w", err)
	}
	return &JSONStore{baseDir: baseDir}, nil
}

// Load reads the named collection into dest. A missing file leaves dest
// untouched and returns no error, mirroring an empty collection.
func (s *JSONStore) Load(name string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.resolve(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read local collection %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode local collection %s: %w", name, err)
	}
	return nil
}

// Save writes the collection atomically via a temp file rename.
func (s *JSONStore) Save(name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local collection %s: %w", name, err)
	}

	path := s.resolve(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write local collection %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace local collection %s: %w", name, err)
	}
	return nil
}

// Delete removes the named collection if present.
func (s *JSONStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.resolve(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete local collection %s: %w", name, err)
	}
	return nil
}

// Path exposes the absolute path of a collection file, useful for debugging.
func (s *JSONStore) Path(name string) string {
	return s.resolve(name)
}

func (s *JSONStore) resolve(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}
