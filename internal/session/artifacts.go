package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/model"
)

// Session is one run's workspace. The snapshot never changes after Create.
type Session struct {
	ID       string
	Dir      string
	meta     Meta
	snapshot []model.JobRecord
}

// Meta returns the creation metadata.
func (s *Session) Meta() Meta { return s.meta }

// Snapshot returns a copy of the immutable input records, in their original
// order.
func (s *Session) Snapshot() []model.JobRecord {
	out := make([]model.JobRecord, len(s.snapshot))
	for i, r := range s.snapshot {
		out[i] = r.Clone()
	}
	return out
}

// Path returns the path of a file inside the session directory.
func (s *Session) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

func (s *Session) CheckpointPath() string { return s.Path(CheckpointFile) }
func (s *Session) PartialPath() string    { return s.Path(PartialFile) }

// Status reports the session's progress.
func (s *Session) Status() Status { return statusOf(s.Dir) }

// HasCheckpoint reports whether an interrupted classification is pending.
func (s *Session) HasCheckpoint() bool {
	return exists(s.CheckpointPath())
}

// SaveClassified writes the final classification output.
func (s *Session) SaveClassified(jobs []model.ClassifiedJob) error {
	if jobs == nil {
		jobs = []model.ClassifiedJob{}
	}
	if err := atomicfile.WriteJSON(s.Path(ClassifiedFile), jobs); err != nil {
		return fmt.Errorf("saving classified jobs for session %s: %w", s.ID, err)
	}
	return nil
}

// LoadClassified reads the final output. A session without output yields
// (nil, nil).
func (s *Session) LoadClassified() ([]model.ClassifiedJob, error) {
	data, err := os.ReadFile(s.Path(ClassifiedFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading classified jobs for session %s: %w", s.ID, err)
	}
	var jobs []model.ClassifiedJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decoding classified jobs for session %s: %w", s.ID, err)
	}
	return jobs, nil
}

// AppendLLMInteraction logs one prompt/response pair to llm_log.md.
func (s *Session) AppendLLMInteraction(label, prompt, response string) error {
	f, err := os.OpenFile(s.Path(LLMLogFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening llm log: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "## %s (%s)\n\n### Prompt\n\n```\n%s\n```\n\n### Response\n\n```\n%s\n```\n\n",
		label, time.Now().Format(time.RFC3339), prompt, response)
	if err != nil {
		return fmt.Errorf("writing llm log: %w", err)
	}
	return nil
}
