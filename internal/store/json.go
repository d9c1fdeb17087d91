package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/schema"
)

// JSONFile keeps the store in a single JSON document:
//
//	{"metadata": {...}, "jobs": {"<id>": {...}}}
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (f *JSONFile) Location() string { return f.path }
func (f *JSONFile) Close() error     { return nil }

// Read returns (nil, nil) if the file does not exist.
func (f *JSONFile) Read(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", f.path, err)
	}

	if err := schema.ValidateStore(data); err != nil {
		return nil, &model.CorruptStoreError{Path: f.path, Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &model.CorruptStoreError{Path: f.path, Err: err}
	}
	if snap.Jobs == nil {
		snap.Jobs = make(map[string]model.JobRecord)
	}
	for key, rec := range snap.Jobs {
		if rec.ID != key {
			return nil, &model.CorruptStoreError{
				Path: f.path,
				Err:  fmt.Errorf("job keyed %q carries id %q", key, rec.ID),
			}
		}
	}
	return &snap, nil
}

// Write replaces the file atomically.
func (f *JSONFile) Write(ctx context.Context, snap *Snapshot) error {
	if err := atomicfile.WriteJSON(f.path, snap); err != nil {
		return &model.StoreWriteError{Path: f.path, Err: err}
	}
	return nil
}
