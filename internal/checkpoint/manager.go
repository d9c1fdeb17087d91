package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/google/uuid"
)

// State of a classification run.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BatchFunc processes one batch and returns one result per item, in order.
type BatchFunc func(ctx context.Context, batch []model.JobRecord) ([]model.ClassifiedJob, error)

// Progress is reported after every persisted batch.
type Progress struct {
	Batch     int // 1-based, within this attempt
	Batches   int // batches in this attempt
	Completed int // items completed overall
	Total     int
}

// RunOptions controls a single attempt.
type RunOptions struct {
	// Resume continues from an existing checkpoint. When false any checkpoint
	// is discarded first.
	Resume bool

	Workflow            string
	CriteriaFingerprint string

	// Commit receives the full result set before the checkpoint is cleared.
	// If it fails the checkpoint stays, and a resumed run only re-commits.
	Commit func(results []model.ClassifiedJob) error

	OnBatch func(Progress)
}

// BatchFailedError reports the batch that stopped a run. Everything before
// Position is persisted.
type BatchFailedError struct {
	SessionID string
	Batch     int
	Batches   int
	Position  int
	Size      int
	Err       error
}

func (e *BatchFailedError) Error() string {
	return fmt.Sprintf("session %s: batch %d/%d (items %d-%d) failed: %v",
		e.SessionID, e.Batch, e.Batches, e.Position, e.Position+e.Size-1, e.Err)
}

func (e *BatchFailedError) Unwrap() error { return e.Err }

// Manager runs a batch sequence for one session, persisting progress after
// every batch. A Manager is not safe for concurrent use.
type Manager struct {
	sessionID      string
	checkpointPath string
	partialPath    string
	batchSize      int
	state          State
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
}

// NewManager creates a manager for the checkpoint and partial results files
// of a session.
func NewManager(sessionID, checkpointPath, partialPath string, batchSize int, logger *slog.Logger) *Manager {
	return &Manager{
		sessionID:      sessionID,
		checkpointPath: checkpointPath,
		partialPath:    partialPath,
		batchSize:      batchSize,
		state:          NotStarted,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// State returns the state after the last Run.
func (m *Manager) State() State { return m.state }

// Discard deletes the checkpoint and partial results.
func (m *Manager) Discard() error {
	if err := remove(m.checkpointPath); err != nil {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	if err := remove(m.partialPath); err != nil {
		return fmt.Errorf("removing partial results: %w", err)
	}
	return nil
}

// Run processes items in batches, skipping the prefix an earlier attempt
// completed. On success the combined results are committed and the checkpoint
// is deleted. On a batch failure the last persisted checkpoint is left as is.
func (m *Manager) Run(ctx context.Context, items []model.JobRecord, process BatchFunc, opts RunOptions) ([]model.ClassifiedJob, error) {
	if m.batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", m.batchSize)
	}

	if !opts.Resume {
		if err := m.Discard(); err != nil {
			return nil, err
		}
	}

	cp, results, err := m.prepare(items, opts)
	if err != nil {
		m.state = Failed
		return nil, err
	}
	m.state = InProgress

	done := cp.Completed()
	remaining := items[done:]
	batches := (len(remaining) + m.batchSize - 1) / m.batchSize
	if done > 0 {
		m.logger.Info("resuming from checkpoint",
			"session", m.sessionID,
			"completed", done,
			"remaining", len(remaining),
			"attempt", cp.Attempts,
		)
	}

	for n := 0; n < batches; n++ {
		start := n * m.batchSize
		end := min(start+m.batchSize, len(remaining))
		batch := remaining[start:end]
		position := done + start

		fail := func(err error) error {
			m.state = Failed
			return &BatchFailedError{
				SessionID: m.sessionID,
				Batch:     n + 1,
				Batches:   batches,
				Position:  position,
				Size:      len(batch),
				Err:       err,
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, fail(err)
		}

		m.logger.Info("processing batch", "session", m.sessionID, "batch", n+1, "of", batches, "items", len(batch))
		out, err := process(ctx, batch)
		if err != nil {
			return nil, fail(err)
		}
		if err := checkResults(batch, out); err != nil {
			return nil, fail(err)
		}

		results = append(results, out...)
		for _, it := range batch {
			cp.CompletedItems = append(cp.CompletedItems, it.ID)
		}
		cp.UpdatedAt = m.now().UTC()

		// partial results first: a crash between the two writes leaves extra
		// partials, which load trims back to the checkpoint prefix
		if err := writePartial(m.partialPath, results); err != nil {
			m.state = Failed
			return nil, fmt.Errorf("persisting partial results after batch %d: %w", n+1, err)
		}
		if err := write(m.checkpointPath, cp); err != nil {
			m.state = Failed
			return nil, fmt.Errorf("persisting checkpoint after batch %d: %w", n+1, err)
		}

		if opts.OnBatch != nil {
			opts.OnBatch(Progress{Batch: n + 1, Batches: batches, Completed: cp.Completed(), Total: len(items)})
		}
	}

	if opts.Commit != nil {
		if err := opts.Commit(results); err != nil {
			m.state = Failed
			return nil, fmt.Errorf("committing results: %w", err)
		}
	}
	if err := m.Discard(); err != nil {
		m.state = Failed
		return nil, fmt.Errorf("cleaning up checkpoint: %w", err)
	}

	m.state = Completed
	m.logger.Info("classification complete", "session", m.sessionID, "items", len(results))
	return results, nil
}

// prepare loads and verifies an existing checkpoint, or starts a fresh one.
func (m *Manager) prepare(items []model.JobRecord, opts RunOptions) (*Checkpoint, []model.ClassifiedJob, error) {
	fp := Fingerprint(items)

	cp, err := Read(m.checkpointPath)
	if err != nil {
		return nil, nil, err
	}
	if cp == nil {
		return &Checkpoint{
			Version:             formatVersion,
			AttemptID:           m.newID(),
			Attempts:            1,
			Workflow:            opts.Workflow,
			ItemsFingerprint:    fp,
			CriteriaFingerprint: opts.CriteriaFingerprint,
			TotalItems:          len(items),
			CompletedItems:      []string{},
			BatchSize:           m.batchSize,
		}, nil, nil
	}

	if err := m.verify(cp, items, fp, opts); err != nil {
		return nil, nil, err
	}

	partial, err := readPartial(m.partialPath)
	if err != nil {
		return nil, nil, err
	}
	if len(partial) < cp.Completed() {
		return nil, nil, &model.CheckpointCorruptError{
			Path:   m.partialPath,
			Reason: fmt.Sprintf("checkpoint lists %d completed items but only %d results are saved", cp.Completed(), len(partial)),
		}
	}
	if len(partial) > cp.Completed() {
		m.logger.Warn("dropping uncommitted partial results",
			"session", m.sessionID,
			"partial", len(partial),
			"completed", cp.Completed(),
		)
		partial = partial[:cp.Completed()]
	}
	for i, r := range partial {
		if r.ID != cp.CompletedItems[i] {
			return nil, nil, &model.CheckpointCorruptError{
				Path:   m.partialPath,
				Reason: fmt.Sprintf("result %d is for %q, checkpoint expects %q", i, r.ID, cp.CompletedItems[i]),
			}
		}
	}

	cp.Attempts++
	cp.AttemptID = m.newID()
	cp.BatchSize = m.batchSize
	return cp, partial, nil
}

func (m *Manager) verify(cp *Checkpoint, items []model.JobRecord, fp string, opts RunOptions) error {
	mismatch := func(reason string) error {
		return &model.ResumeMismatchError{SessionID: m.sessionID, Reason: reason}
	}
	if cp.TotalItems != len(items) {
		return mismatch(fmt.Sprintf("checkpoint covers %d items, input has %d", cp.TotalItems, len(items)))
	}
	if cp.ItemsFingerprint != fp {
		return mismatch("input items or their order changed since the checkpoint was written")
	}
	if cp.CriteriaFingerprint != opts.CriteriaFingerprint {
		return mismatch("classification criteria changed since the checkpoint was written")
	}
	if opts.Workflow != "" && cp.Workflow != "" && cp.Workflow != opts.Workflow {
		return mismatch(fmt.Sprintf("checkpoint was written by workflow %q, not %q", cp.Workflow, opts.Workflow))
	}
	for i, id := range cp.CompletedItems {
		if items[i].ID != id {
			return mismatch(fmt.Sprintf("completed item %d is %q but input has %q", i, id, items[i].ID))
		}
	}
	return nil
}

func checkResults(batch []model.JobRecord, out []model.ClassifiedJob) error {
	if len(out) != len(batch) {
		return &model.BatchValidationError{Kind: model.WrongCount, Expected: len(batch), Got: len(out)}
	}
	for i := range batch {
		if out[i].ID != batch[i].ID {
			return &model.BatchValidationError{
				Kind:   model.UnparseableID,
				Detail: fmt.Sprintf("result %d is for %q, expected %q", i, out[i].ID, batch[i].ID),
			}
		}
		if len(out[i].Categories) == 0 {
			return &model.BatchValidationError{
				Kind:   model.UnknownLabel,
				Detail: fmt.Sprintf("result %d (%s) has no labels", i, out[i].ID),
			}
		}
	}
	return nil
}
