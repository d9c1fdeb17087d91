// Package checkpoint makes long batch classification runs restartable.
//
// Progress is position based: the checkpoint stores the ordered prefix of item
// ids already processed, and a resumed run continues at items[len(prefix):].
// This is only correct if the resumed run sees the same items in the same
// order, so the checkpoint also carries a fingerprint of the full sequence and
// refuses to resume when it does not match.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/schema"
)

const formatVersion = 1

// Checkpoint is the persisted progress of one session's classification run.
type Checkpoint struct {
	Version             int       `json:"version"`
	AttemptID           string    `json:"attempt_id"`
	Attempts            int       `json:"attempts"`
	Workflow            string    `json:"workflow,omitempty"`
	ItemsFingerprint    string    `json:"items_fingerprint"`
	CriteriaFingerprint string    `json:"criteria_fingerprint,omitempty"`
	TotalItems          int       `json:"total_items"`
	CompletedItems      []string  `json:"completed_items"`
	BatchSize           int       `json:"batch_size"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Completed returns the number of items already processed.
func (c *Checkpoint) Completed() int { return len(c.CompletedItems) }

// Fingerprint hashes the ordered ids of items.
func Fingerprint(items []model.JobRecord) string {
	h := sha256.New()
	for _, it := range items {
		h.Write([]byte(it.ID))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Digest hashes arbitrary criteria text (CV content, category definitions).
func Digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Read loads a checkpoint file. A missing file yields (nil, nil).
func Read(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	if err := schema.ValidateCheckpoint(data); err != nil {
		return nil, &model.CheckpointCorruptError{Path: path, Reason: "invalid checkpoint document", Err: err}
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &model.CheckpointCorruptError{Path: path, Reason: "invalid checkpoint document", Err: err}
	}
	if cp.Version != formatVersion {
		return nil, &model.CheckpointCorruptError{Path: path, Reason: fmt.Sprintf("unsupported version %d", cp.Version)}
	}
	if cp.Completed() > cp.TotalItems {
		return nil, &model.CheckpointCorruptError{
			Path:   path,
			Reason: fmt.Sprintf("%d completed items exceed total of %d", cp.Completed(), cp.TotalItems),
		}
	}
	return &cp, nil
}

func readPartial(path string) ([]model.ClassifiedJob, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading partial results: %w", err)
	}
	if err := schema.ValidatePartialResults(data); err != nil {
		return nil, &model.CheckpointCorruptError{Path: path, Reason: "invalid partial results", Err: err}
	}
	var out []model.ClassifiedJob
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &model.CheckpointCorruptError{Path: path, Reason: "invalid partial results", Err: err}
	}
	return out, nil
}

func write(path string, cp *Checkpoint) error {
	return atomicfile.WriteJSON(path, cp)
}

func writePartial(path string, results []model.ClassifiedJob) error {
	if results == nil {
		results = []model.ClassifiedJob{}
	}
	return atomicfile.WriteJSON(path, results)
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
