package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"DealScanner/internal/domain"
	"DealScanner/internal/ports"
)

const snapshotTimeLayout = "20060102_150405"

// SnapshotDir writes one JSON file per scan cycle and never overwrites an existing one.
type SnapshotDir struct {
	dir string
}

var _ ports.SnapshotWriter = (*SnapshotDir)(nil)

// NewSnapshotDir stores snapshots under dir.
func NewSnapshotDir(dir string) *SnapshotDir {
	return &SnapshotDir{dir: dir}
}

// WriteSnapshot returns the path of the created file.
func (s *SnapshotDir) WriteSnapshot(_ context.Context, snap domain.Snapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, snapshotName(snap))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create snapshot %s: %w", path, err)
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

func snapshotName(snap domain.Snapshot) string {
	name := "items_" + snap.TakenAt.Format(snapshotTimeLayout)
	if id := shortID(snap.CycleID); id != "" {
		name += "_" + id
	}
	return name + ".json"
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}
