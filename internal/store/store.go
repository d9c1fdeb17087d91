package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

// Metadata is the store-level bookkeeping persisted next to the records.
type Metadata struct {
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`
	TotalJobs   int       `json:"total_jobs"`
	Area        *Area     `json:"area,omitempty"`

	// Searches are the queries fetched into the store, FirstMatch being the
	// first fetch.
	Searches []model.SearchRef `json:"searches,omitempty"`
}

// Area is the search location a store is bound to by its first fetch.
type Area struct {
	Location string `json:"location"`
	RadiusKM int    `json:"radius_km"`
}

func (a Area) same(b Area) bool {
	return strings.EqualFold(strings.TrimSpace(a.Location), strings.TrimSpace(b.Location)) &&
		a.RadiusKM == b.RadiusKM
}

// Snapshot is the durable representation of a store.
type Snapshot struct {
	Metadata Metadata                   `json:"metadata"`
	Jobs     map[string]model.JobRecord `json:"jobs"`
}

// Backend persists snapshots. Read returns (nil, nil) when nothing has been
// written yet, and *model.CorruptStoreError when the data cannot be trusted.
// Write must be atomic and returns *model.StoreWriteError on failure.
type Backend interface {
	Read(ctx context.Context) (*Snapshot, error)
	Write(ctx context.Context, snap *Snapshot) error
	Location() string
	Close() error
}

// Store is the in-memory record store. Merge and ApplyEnrichment only touch
// memory; Save commits through the backend.
type Store struct {
	backend Backend
	meta    Metadata
	records map[string]model.JobRecord
	now     func() time.Time
	logger  *slog.Logger
}

// MergeResult partitions a candidate set in encounter order.
type MergeResult struct {
	New        []model.JobRecord
	Updated    []model.JobRecord
	Unchanged  []model.JobRecord
	Duplicates int // repeated ids inside the candidate set, skipped
}

// Changed returns new followed by updated records.
func (r MergeResult) Changed() []model.JobRecord {
	out := make([]model.JobRecord, 0, len(r.New)+len(r.Updated))
	out = append(out, r.New...)
	return append(out, r.Updated...)
}

// Load reads the backend into a new Store. A backend with no data yields an
// empty store; unparsable data is an error, never an empty store.
func Load(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	return load(ctx, backend, time.Now, logger)
}

func load(ctx context.Context, backend Backend, now func() time.Time, logger *slog.Logger) (*Store, error) {
	snap, err := backend.Read(ctx)
	if err != nil {
		return nil, err
	}

	s := &Store{
		backend: backend,
		records: make(map[string]model.JobRecord),
		now:     now,
		logger:  logger,
	}
	if snap == nil {
		t := now().UTC()
		s.meta = Metadata{Created: t, LastUpdated: t}
		logger.Info("starting new record store", "location", backend.Location())
		return s, nil
	}

	s.meta = snap.Metadata
	for id, rec := range snap.Jobs {
		s.records[id] = rec
	}
	logger.Info("loaded record store", "location", backend.Location(), "jobs", len(s.records))
	return s, nil
}

// ClaimArea binds an unbound store to area and rejects any other area once
// bound. The binding is persisted by the next Save.
func (s *Store) ClaimArea(area Area) error {
	if s.meta.Area == nil {
		s.meta.Area = &area
		s.logger.Info("record store bound to area", "location", area.Location, "radius_km", area.RadiusKM)
		return nil
	}
	if !s.meta.Area.same(area) {
		return &model.AreaMismatchError{
			Path:          s.backend.Location(),
			StoreLocation: s.meta.Area.Location,
			StoreRadiusKM: s.meta.Area.RadiusKM,
			Location:      area.Location,
			RadiusKM:      area.RadiusKM,
		}
	}
	return nil
}

// Searched reports whether ref's query was fetched into the store before.
// Stores written before searches were recorded fall back to provenance.
func (s *Store) Searched(ref model.SearchRef) bool {
	for _, done := range s.meta.Searches {
		if done.Key() == ref.Key() {
			return true
		}
	}
	for _, rec := range s.records {
		if rec.HasProvenance(ref) {
			return true
		}
	}
	return false
}

// RecordSearch notes a completed fetch of ref's query. It is persisted by
// the next Save.
func (s *Store) RecordSearch(ref model.SearchRef) {
	for _, done := range s.meta.Searches {
		if done.Key() == ref.Key() {
			return
		}
	}
	ref.FirstMatch = s.now().UTC()
	s.meta.Searches = append(s.meta.Searches, ref)
}

// Merge classifies candidates against the current contents.
//
// Unknown ids and candidates without a modification token are new. A token
// that differs from the stored one (in any direction) is updated. An equal
// token is unchanged and only moves last_seen. New and updated records replace
// the stored listing fields but keep first_seen and any existing details.
func (s *Store) Merge(candidates []model.JobRecord) MergeResult {
	var res MergeResult
	now := s.now().UTC()
	seen := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		if seen[c.ID] {
			res.Duplicates++
			continue
		}
		seen[c.ID] = true

		existing, ok := s.records[c.ID]
		switch {
		case !ok:
			rec := fresh(c, now)
			s.records[c.ID] = rec
			res.New = append(res.New, rec.Clone())
		case c.ModificationToken == "":
			rec := overwrite(existing, c, now)
			s.records[c.ID] = rec
			res.New = append(res.New, rec.Clone())
		case c.ModificationToken != existing.ModificationToken:
			rec := overwrite(existing, c, now)
			s.records[c.ID] = rec
			res.Updated = append(res.Updated, rec.Clone())
		default:
			existing.LastSeen = now
			s.records[c.ID] = existing
			res.Unchanged = append(res.Unchanged, existing.Clone())
		}
	}

	s.logger.Debug("merged candidates",
		"candidates", len(candidates),
		"new", len(res.New),
		"updated", len(res.Updated),
		"unchanged", len(res.Unchanged),
		"duplicates", res.Duplicates,
	)
	return res
}

func fresh(c model.JobRecord, now time.Time) model.JobRecord {
	rec := c.Clone()
	rec.Details = nil
	rec.FirstSeen = now
	rec.LastSeen = now
	rec.Provenance = nil
	rec.AddProvenance(stamp(c.Provenance, now)...)
	return rec
}

func overwrite(existing, c model.JobRecord, now time.Time) model.JobRecord {
	rec := c.Clone()
	rec.Details = existing.Clone().Details
	rec.FirstSeen = existing.FirstSeen
	rec.LastSeen = now
	rec.Provenance = existing.Clone().Provenance
	rec.AddProvenance(stamp(c.Provenance, now)...)
	return rec
}

func stamp(refs []model.SearchRef, now time.Time) []model.SearchRef {
	out := make([]model.SearchRef, len(refs))
	for i, r := range refs {
		if r.FirstMatch.IsZero() {
			r.FirstMatch = now
		}
		out[i] = r
	}
	return out
}

// ApplyEnrichment attaches details to an existing record.
func (s *Store) ApplyEnrichment(id string, d model.Details) error {
	rec, ok := s.records[id]
	if !ok {
		return &model.UnknownRecordError{ID: id}
	}
	rec.Details = &d
	s.records[id] = rec
	return nil
}

// Remove deletes a record. Nothing else in the store ever drops records.
func (s *Store) Remove(id string) error {
	if _, ok := s.records[id]; !ok {
		return &model.UnknownRecordError{ID: id}
	}
	delete(s.records, id)
	return nil
}

// Save commits the store through its backend.
func (s *Store) Save(ctx context.Context) error {
	meta := s.meta
	meta.LastUpdated = s.now().UTC()
	meta.TotalJobs = len(s.records)

	jobs := make(map[string]model.JobRecord, len(s.records))
	for id, rec := range s.records {
		jobs[id] = rec
	}
	if err := s.backend.Write(ctx, &Snapshot{Metadata: meta, Jobs: jobs}); err != nil {
		return err
	}

	s.meta = meta
	s.logger.Info("saved record store", "location", s.backend.Location(), "jobs", meta.TotalJobs)
	return nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (model.JobRecord, bool) {
	rec, ok := s.records[id]
	if !ok {
		return model.JobRecord{}, false
	}
	return rec.Clone(), true
}

// Records returns copies of all records ordered by id.
func (s *Store) Records() []model.JobRecord {
	out := make([]model.JobRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns copies of the records for ids, in the given order.
func (s *Store) Lookup(ids []string) ([]model.JobRecord, error) {
	out := make([]model.JobRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok {
			return nil, &model.UnknownRecordError{ID: id}
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *Store) Len() int           { return len(s.records) }
func (s *Store) IsEmpty() bool      { return len(s.records) == 0 }
func (s *Store) Metadata() Metadata { return s.meta }

// Location describes where the store is persisted.
func (s *Store) Location() string { return s.backend.Location() }

// Open returns the backend for kind ("json" or "sqlite") at path.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "", "json":
		return NewJSONFile(path), nil
	case "sqlite":
		return NewSQLiteBackend(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
