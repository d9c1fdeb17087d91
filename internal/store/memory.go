package store

import (
	"context"

	"github.com/amishk599/jobsync/internal/model"
)

// MemoryBackend keeps the snapshot in memory. It backs dry runs, where the
// store is loaded from disk but never written back, and tests.
type MemoryBackend struct {
	snap   *Snapshot
	writes int
}

// NewMemoryBackend starts from snap, which may be nil for an empty store.
func NewMemoryBackend(snap *Snapshot) *MemoryBackend {
	return &MemoryBackend{snap: copySnapshot(snap)}
}

func (m *MemoryBackend) Read(ctx context.Context) (*Snapshot, error) {
	return copySnapshot(m.snap), nil
}

func (m *MemoryBackend) Write(ctx context.Context, snap *Snapshot) error {
	m.snap = copySnapshot(snap)
	m.writes++
	return nil
}

func (m *MemoryBackend) Location() string { return "memory" }
func (m *MemoryBackend) Close() error     { return nil }

// Writes reports how many times Write was called.
func (m *MemoryBackend) Writes() int { return m.writes }

func copySnapshot(snap *Snapshot) *Snapshot {
	if snap == nil {
		return nil
	}
	out := &Snapshot{Metadata: snap.Metadata, Jobs: make(map[string]model.JobRecord, len(snap.Jobs))}
	out.Metadata.Searches = append([]model.SearchRef(nil), snap.Metadata.Searches...)
	for id, rec := range snap.Jobs {
		out.Jobs[id] = rec.Clone()
	}
	return out
}
