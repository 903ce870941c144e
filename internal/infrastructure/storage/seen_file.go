package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"DealScanner/internal/ports"
)

// FileSeenStore keeps the seen-set as a sorted JSON array on disk.
type FileSeenStore struct {
	path   string
	logger *slog.Logger
}

var _ ports.SeenStore = (*FileSeenStore)(nil)

// NewFileSeenStore stores the set at path.
func NewFileSeenStore(path string, logger *slog.Logger) *FileSeenStore {
	return &FileSeenStore{path: path, logger: logger}
}

// Load returns an empty set when the file is missing or unreadable as JSON.
func (s *FileSeenStore) Load(_ context.Context) (map[string]struct{}, error) {
	seen := map[string]struct{}{}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return seen, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seen file: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		if s.logger != nil {
			s.logger.Warn("seen file is corrupt, starting with an empty set", "path", s.path, "error", err)
		}
		return seen, nil
	}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// Save replaces the file atomically with the full set.
func (s *FileSeenStore) Save(_ context.Context, seen map[string]struct{}) error {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	raw, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen set: %w", err)
	}
	return writeFileAtomic(s.path, raw)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
