package storage

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// FileArtifactStore persists the index artifact as a single gob blob.
type FileArtifactStore struct {
	path string
}

// NewFileArtifactStore creates a store writing to path
func NewFileArtifactStore(path string) *FileArtifactStore {
	return &FileArtifactStore{path: path}
}

// Path returns the artifact location
func (s *FileArtifactStore) Path() string {
	return s.path
}

// Save replaces the artifact atomically: it is written to a temporary file
// in the same directory and renamed over the old one, so readers never see
// a partial artifact.
func (s *FileArtifactStore) Save(artifact *domain.IndexArtifact) error {
	if err := domain.ValidateArtifact(artifact); err != nil {
		return fmt.Errorf("refusing to save invalid artifact: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vector_index-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := gob.NewEncoder(tmp).Encode(artifact); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace artifact: %w", err)
	}

	committed = true
	return nil
}

// Load reads the artifact. It returns domain.ErrIndexMissing when no
// artifact has been written yet.
func (s *FileArtifactStore) Load() (*domain.IndexArtifact, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrIndexMissing
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	var artifact domain.IndexArtifact
	if err := gob.NewDecoder(f).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	return &artifact, nil
}

// Remove deletes the artifact. Removing a missing artifact is not an error.
func (s *FileArtifactStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

// ModTime returns the artifact's modification time and whether it exists
func (s *FileArtifactStore) ModTime() (time.Time, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
