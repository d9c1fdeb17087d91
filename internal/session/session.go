// Package session manages per-run workspaces: a directory holding the
// immutable input snapshot of a run, its in-flight classification state and
// its output artifacts.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/model"
)

// IDLayout is the time layout of session identifiers.
const IDLayout = "20060102_150405"

// File names inside a session directory.
const (
	MetaFile       = "session.json"
	SnapshotFile   = "snapshot.json"
	CheckpointFile = "checkpoint.json"
	PartialFile    = "partial_results.json"
	ClassifiedFile = "classified.json"
	SummaryFile    = "SUMMARY.txt"
	CSVFile        = "jobs.csv"
	XLSXFile       = "jobs.xlsx"
	FailedCSVFile  = "jobs_failed.csv"
	LLMLogFile     = "llm_log.md"
)

// Status is derived from which files exist in the session directory.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Meta describes how a session was created. It is written once.
type Meta struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Origin   string    `json:"origin"` // fetch, store or file
	Query    string    `json:"query,omitempty"`
	Location string    `json:"location,omitempty"`
	Workflow string    `json:"workflow,omitempty"`
	Items    int       `json:"items"`
}

// Workspace is the root directory that contains all sessions.
type Workspace struct {
	root   string
	now    func() time.Time
	logger *slog.Logger
}

func NewWorkspace(root string, logger *slog.Logger) *Workspace {
	return &Workspace{root: root, now: time.Now, logger: logger}
}

// SetClock replaces the clock that names new sessions.
func (w *Workspace) SetClock(now func() time.Time) { w.now = now }

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Create allocates a new session for records. The identifier comes from the
// current time; an identifier that already exists is an error.
func (w *Workspace) Create(records []model.JobRecord, meta Meta) (*Session, error) {
	created := w.now()
	id := created.Format(IDLayout)

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return nil, fmt.Errorf("creating session root %s: %w", w.root, err)
	}
	dir := filepath.Join(w.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, &model.WorkspaceExistsError{ID: id}
		}
		return nil, fmt.Errorf("creating session %s: %w", id, err)
	}

	snapshot := make([]model.JobRecord, len(records))
	for i, r := range records {
		snapshot[i] = r.Clone()
	}
	if err := writeOnce(filepath.Join(dir, SnapshotFile), snapshot); err != nil {
		w.abandon(dir)
		return nil, fmt.Errorf("writing snapshot for session %s: %w", id, err)
	}

	meta.ID = id
	meta.Created = created
	meta.Items = len(snapshot)
	if err := atomicfile.WriteJSON(filepath.Join(dir, MetaFile), meta); err != nil {
		w.abandon(dir)
		return nil, fmt.Errorf("writing metadata for session %s: %w", id, err)
	}

	w.logger.Info("created session", "session", id, "items", len(snapshot), "dir", dir)
	return &Session{ID: id, Dir: dir, meta: meta, snapshot: snapshot}, nil
}

// abandon removes a half-created session directory so its id stays free.
func (w *Workspace) abandon(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		w.logger.Warn("removing incomplete session", "dir", dir, "error", err)
	}
}

// writeOnce creates path exclusively, so an existing snapshot is never
// replaced.
func writeOnce(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load opens an existing session.
func (w *Workspace) Load(id string) (*Session, error) {
	if _, err := time.Parse(IDLayout, id); err != nil {
		return nil, &model.SessionNotFoundError{ID: id}
	}
	dir := filepath.Join(w.root, id)

	data, err := os.ReadFile(filepath.Join(dir, SnapshotFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &model.SessionNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot for session %s: %w", id, err)
	}
	var snapshot []model.JobRecord
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot for session %s: %w", id, err)
	}

	meta, err := readMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if meta.ID == "" {
		meta.ID = id
		meta.Items = len(snapshot)
	}
	return &Session{ID: id, Dir: dir, meta: meta, snapshot: snapshot}, nil
}

func readMeta(dir string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decoding metadata: %w", err)
	}
	return meta, nil
}

// Info summarizes a session for listings.
type Info struct {
	Meta
	Status Status
}

// List returns all sessions in chronological order.
func (w *Workspace) List() ([]Info, error) {
	entries, err := os.ReadDir(w.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(IDLayout, e.Name()); err != nil {
			continue
		}
		dir := filepath.Join(w.root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, SnapshotFile)); err != nil {
			continue
		}
		meta, err := readMeta(dir)
		if err != nil {
			w.logger.Warn("skipping session with unreadable metadata", "session", e.Name(), "error", err)
			continue
		}
		meta.ID = e.Name()
		out = append(out, Info{Meta: meta, Status: statusOf(dir)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Latest returns the most recent session.
func (w *Workspace) Latest() (*Session, error) {
	infos, err := w.List()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, &model.SessionNotFoundError{ID: "latest"}
	}
	return w.Load(infos[len(infos)-1].ID)
}

func statusOf(dir string) Status {
	if exists(filepath.Join(dir, ClassifiedFile)) {
		return StatusCompleted
	}
	if exists(filepath.Join(dir, CheckpointFile)) {
		return StatusInProgress
	}
	return StatusPending
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
