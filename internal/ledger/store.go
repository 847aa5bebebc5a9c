package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"autoclip/internal/domain"
)

// ProjectStore defines persistence operations for the project history.
type ProjectStore interface {
	Load() ([]domain.ProjectRecord, error)
	Save([]domain.ProjectRecord) error
}

// JSONProjectStore persists the project list in a single JSON file.
// Writes go through an atomic rename so a crash mid-write never leaves
// a truncated history behind.
type JSONProjectStore struct {
	path string
}

// NewJSONProjectStore creates a JSON-backed project store.
func NewJSONProjectStore(path string) *JSONProjectStore {
	return &JSONProjectStore{path: path}
}

// Load reads the project history or returns empty when missing.
func (s *JSONProjectStore) Load() ([]domain.ProjectRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var projects []domain.ProjectRecord
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Save rewrites the full project history atomically.
func (s *JSONProjectStore) Save(projects []domain.ProjectRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return err
	}

	return renameio.WriteFile(s.path, data, 0o644)
}

// memoryProjectStore keeps projects in memory only; used when no
// persistence path is configured and in tests.
type memoryProjectStore struct {
	projects []domain.ProjectRecord
}

// NewMemoryProjectStore creates a non-persistent project store.
func NewMemoryProjectStore() ProjectStore {
	return &memoryProjectStore{}
}

// Load returns the stored snapshot.
func (s *memoryProjectStore) Load() ([]domain.ProjectRecord, error) {
	return append([]domain.ProjectRecord(nil), s.projects...), nil
}

// Save replaces the stored snapshot.
func (s *memoryProjectStore) Save(projects []domain.ProjectRecord) error {
	s.projects = append([]domain.ProjectRecord(nil), projects...)
	return nil
}
