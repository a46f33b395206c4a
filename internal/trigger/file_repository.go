package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/railrunner/internal/infrastructure/datafile"
)

// fileKeyPrefix groups per-map documents under one directory.
const fileKeyPrefix = "maps"

// triggerDocument is the on-disk layout of a map's trigger file.
type triggerDocument struct {
	MapID    string   `json:"map_id"`
	Triggers []Record `json:"triggers"`
}

// FileRepository implements Repository with one JSON file per map.
type FileRepository struct {
	files *datafile.Store
}

// NewFileRepository creates a repository writing under files.
func NewFileRepository(files *datafile.Store) *FileRepository {
	return &FileRepository{files: files}
}

// Load reads the map's file. A missing file means no triggers.
func (r *FileRepository) Load(_ context.Context, mapID string) ([]Record, error) {
	var doc triggerDocument
	if err := r.files.ReadObject(datafile.MapKey(fileKeyPrefix, mapID), &doc); err != nil {
		if errors.Is(err, datafile.ErrNotFound) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("reading trigger file: %w", err)
	}
	if doc.Triggers == nil {
		doc.Triggers = []Record{}
	}
	return doc.Triggers, nil
}

// Save rewrites the map's file.
func (r *FileRepository) Save(_ context.Context, mapID string, records []Record) error {
	doc := triggerDocument{MapID: mapID, Triggers: records}
	if doc.Triggers == nil {
		doc.Triggers = []Record{}
	}
	if err := r.files.WriteObject(datafile.MapKey(fileKeyPrefix, mapID), doc); err != nil {
		return fmt.Errorf("writing trigger file: %w", err)
	}
	return nil
}
