package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/storage"
)

// SnapshotName is the file the fetch stage writes its records to.
const SnapshotName = "catalog.json"

// Snapshot is the persisted result of a fetch.
type Snapshot struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Records   []domain.Record `json:"records"`
}

// FileSource serves records from the snapshot written by a previous fetch.
type FileSource struct {
	store *storage.Store
}

// NewFileSource creates a FileSource reading from store's data area.
func NewFileSource(store *storage.Store) *FileSource {
	return &FileSource{store: store}
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, f Filter) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.Load()
	if err != nil {
		return nil, err
	}
	return f.Apply(snap.Records), nil
}

// Load reads the whole snapshot.
func (s *FileSource) Load() (Snapshot, error) {
	var snap Snapshot
	if err := s.store.ReadJSON(storage.AreaData, SnapshotName, &snap); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotMissing, s.store.Path(storage.AreaData, SnapshotName))
		}
		return Snapshot{}, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}
	return snap, nil
}

// Save atomically replaces the snapshot.
func (s *FileSource) Save(records []domain.Record, at time.Time) (string, error) {
	path, err := s.store.WriteJSON(storage.AreaData, SnapshotName, Snapshot{FetchedAt: at, Records: records})
	if err != nil {
		return "", fmt.Errorf("failed to save catalog snapshot: %w", err)
	}
	return path, nil
}
