package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/amishk599/jobsync/internal/checkpoint"
	"github.com/amishk599/jobsync/internal/classify"
	"github.com/amishk599/jobsync/internal/export"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/scrape"
	"github.com/amishk599/jobsync/internal/session"
)

// ErrSessionCompleted is returned when resuming a session that already has
// its final output and no checkpoint.
var ErrSessionCompleted = errors.New("session is already classified")

// Resume continues the classification of an existing session. With
// opts.Resume false any checkpoint is discarded and the session is
// classified from the start.
func (r *Runner) Resume(ctx context.Context, sessionID string, opts Options) (res *Result, err error) {
	ctx, span := r.tracer.Start(ctx, "resume", trace.WithAttributes(attribute.String("session", sessionID)))
	defer func() { endSpan(span, err) }()

	if r.deps.Classifier == nil {
		return nil, errors.New("no classifier configured")
	}
	sess, err := r.deps.Workspace.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if opts.Resume && !sess.HasCheckpoint() && sess.Status() == session.StatusCompleted {
		return nil, fmt.Errorf("%s: %w (use --no-resume to classify it again)", sessionID, ErrSessionCompleted)
	}

	res = &Result{SessionID: sess.ID}
	meta := sess.Meta()
	opts.Query.Was, opts.Query.Wo = meta.Query, meta.Location
	if err := r.classifySession(ctx, sess, opts, res); err != nil {
		return res, err
	}
	return res, nil
}

// ClassifyOnly classifies records from a file into a new session. path is a
// JSON array of job records, or a session directory whose snapshot is used.
func (r *Runner) ClassifyOnly(ctx context.Context, path string, opts Options) (res *Result, err error) {
	ctx, span := r.tracer.Start(ctx, "classify-only")
	defer func() { endSpan(span, err) }()

	if r.deps.Classifier == nil {
		return nil, errors.New("no classifier configured")
	}
	recs, err := ReadRecords(path)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s contains no job records", path)
	}

	sess, err := r.deps.Workspace.Create(recs, session.Meta{
		Origin:   "file",
		Query:    filepath.Base(path),
		Workflow: r.deps.Classifier.Criteria().Workflow,
	})
	if err != nil {
		return nil, err
	}

	res = &Result{SessionID: sess.ID}
	opts.Resume = false
	if err := r.classifySession(ctx, sess, opts, res); err != nil {
		return res, err
	}
	return res, nil
}

// ReadRecords loads job records for classification. Duplicate ids keep their
// first occurrence.
func ReadRecords(path string) ([]model.JobRecord, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, session.SnapshotFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	var recs []model.JobRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decoding input %s: %w", path, err)
	}

	seen := make(map[string]bool, len(recs))
	out := recs[:0]
	for i, rec := range recs {
		if rec.ID == "" {
			return nil, fmt.Errorf("input %s: record %d has no id", path, i)
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	return out, nil
}

// classifySession runs the checkpointed classification of sess and writes
// its outputs. Outputs are written inside the checkpoint commit, so a failed
// write leaves the checkpoint for the next attempt.
func (r *Runner) classifySession(ctx context.Context, sess *session.Session, opts Options, res *Result) error {
	ctx, span := r.tracer.Start(ctx, "classify", trace.WithAttributes(attribute.String("session", sess.ID)))
	defer span.End()
	start := time.Now()

	clf := r.deps.Classifier
	if l, ok := clf.(interface{ SetInteractionLog(classify.InteractionLog) }); ok {
		l.SetInteractionLog(sess)
	}
	criteria := clf.Criteria()

	mgr := checkpoint.NewManager(sess.ID, sess.CheckpointPath(), sess.PartialPath(), opts.BatchSize, r.logger)
	items := sess.Snapshot()
	batches := 0

	process := func(ctx context.Context, batch []model.JobRecord) ([]model.ClassifiedJob, error) {
		ctx, bspan := r.tracer.Start(ctx, "classify.batch", trace.WithAttributes(attribute.Int("items", len(batch))))
		defer bspan.End()
		out, err := clf.ClassifyBatch(ctx, batch)
		r.deps.Metrics.Batch(err == nil)
		if err != nil {
			bspan.RecordError(err)
		}
		return out, err
	}

	results, err := mgr.Run(ctx, items, process, checkpoint.RunOptions{
		Resume:              opts.Resume,
		Workflow:            criteria.Workflow,
		CriteriaFingerprint: criteria.Fingerprint(),
		OnBatch: func(p checkpoint.Progress) {
			batches++
			r.logger.Info("batch complete", "session", sess.ID, "batch", p.Batch, "of", p.Batches, "completed", p.Completed, "total", p.Total)
		},
		Commit: func(results []model.ClassifiedJob) error {
			final := results
			if opts.ReturnOnlyMatches {
				final = classify.Matches(results, criteria)
			}
			res.Classified = final
			return r.writeOutputs(sess, opts, res, len(results), batches)
		},
	})
	r.deps.Metrics.ObserveStage("classify", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, j := range results {
		r.deps.Metrics.Labels(j.Categories)
	}
	res.Matches = classify.Matches(results, criteria)
	r.logger.Info("classification finished",
		"session", sess.ID,
		"classified", len(results),
		"matches", len(res.Matches),
		"output", len(res.Classified),
	)

	if r.deps.Notifier != nil {
		if err := r.deps.Notifier.Notify(ctx, sess.ID, res.Matches); err != nil {
			r.logger.Warn("notification failed", "session", sess.ID, "error", err)
		}
	}
	return nil
}

func (r *Runner) writeOutputs(sess *session.Session, opts Options, res *Result, classified, batches int) error {
	if err := sess.SaveClassified(res.Classified); err != nil {
		return err
	}
	if err := export.WriteCSV(sess.Path(session.CSVFile), res.Classified); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	if err := export.WriteXLSX(sess.Path(session.XLSXFile), res.Classified); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	if _, err := export.WriteFailedCSV(sess.Path(session.FailedCSVFile), sess.Snapshot()); err != nil {
		return fmt.Errorf("writing failed csv: %w", err)
	}

	meta := sess.Meta()
	summary := export.Summary{
		SessionID:         sess.ID,
		Created:           meta.Created,
		Mode:              modeName(meta.Origin),
		Model:             opts.Model,
		Workflow:          meta.Workflow,
		Query:             meta.Query,
		Location:          meta.Location,
		RadiusKM:          opts.Query.RadiusKM,
		ReturnOnlyMatches: opts.ReturnOnlyMatches,
		Classified:        classified,
		Batches:           batches,
		Scrape:            snapshotStats(sess.Snapshot()),
	}
	if err := export.WriteSummary(sess.Path(session.SummaryFile), summary, res.Classified); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func modeName(origin string) string {
	switch origin {
	case "store":
		return "From Store"
	case "file":
		return "Classify Only"
	default:
		return "Search"
	}
}

// snapshotStats counts scrape outcomes recorded on a session's records.
func snapshotStats(recs []model.JobRecord) scrape.Stats {
	var ds []model.Details
	for _, rec := range recs {
		if rec.Details != nil {
			ds = append(ds, *rec.Details)
		}
	}
	return scrape.Summarize(ds)
}
