// Package store persists the market registry as a single JSON document,
// replaced atomically at a fixed path on every flush.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/figmp/figmarket/internal/market"
)

// CorruptStoreError reports a store file that exists but cannot be
// parsed as the expected map-of-records shape. Callers fall back to an
// empty registry and log the condition; this is recoverable, not fatal.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt market store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

// SnapshotStore reads and writes full registry snapshots at a fixed path.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store backed by the given file path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Load reads the persisted registry state. A missing file yields an
// empty state; an unparseable file yields a CorruptStoreError.
func (s *SnapshotStore) Load() (map[string]market.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]market.State{}, nil
		}
		return nil, fmt.Errorf("reading market store: %w", err)
	}

	var state map[string]market.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &CorruptStoreError{Path: s.path, Err: err}
	}
	if state == nil {
		state = map[string]market.State{}
	}
	return state, nil
}

// Save writes a full snapshot. The document is written to a temp file in
// the same directory and renamed over the target so readers never see a
// partial write.
func (s *SnapshotStore) Save(state map[string]market.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling market store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
