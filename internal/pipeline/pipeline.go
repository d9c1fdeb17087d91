// Package pipeline runs a sync: fetch listings, merge them into the record
// store, scrape what changed and classify it in a resumable session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amishk599/jobsync/internal/classify"
	"github.com/amishk599/jobsync/internal/filter"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/scrape"
	"github.com/amishk599/jobsync/internal/session"
	"github.com/amishk599/jobsync/internal/store"
	"github.com/amishk599/jobsync/internal/telemetry"
)

// Source is a named listing fetcher.
type Source struct {
	Name    string
	Fetcher model.ListingFetcher
}

// Classifier is a batch classifier that can say what it classifies against.
type Classifier interface {
	model.BatchClassifier
	Criteria() classify.Criteria
}

// Deps are the collaborators of a Runner. Filter, Scraper, Classifier and
// Notifier may be nil; Run then skips the matching step (a nil Classifier
// requires NoClassify).
type Deps struct {
	Backend    store.Backend
	Workspace  *session.Workspace
	Sources    []Source
	Filter     model.ListingFilter
	Scraper    model.DetailScraper
	Classifier Classifier
	Notifier   model.Notifier
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
}

// Options control one run.
type Options struct {
	Query model.Query

	// WindowOverride replaces the incremental window when positive. It must
	// lie within model.MinWindowDays and model.MaxWindowDays.
	WindowOverride int
	// DefaultWindow is used once the store has fetched the query before.
	DefaultWindow int

	UseStore bool     // classify store records instead of fetching
	IDs      []string // with UseStore: exactly these records

	NoScrape          bool
	NoClassify        bool
	ScrapeConcurrency int

	BatchSize         int
	Resume            bool // continue an existing checkpoint
	ReturnOnlyMatches bool

	Model string // reported in SUMMARY.txt
}

// Result describes what a run did.
type Result struct {
	SessionID  string
	Resumed    []string // interrupted sessions finished before fetching
	Window     int
	Fetched    int
	Filtered   int
	Merge      store.MergeResult
	Scrape     scrape.Stats
	Classified []model.ClassifiedJob // final output, after return-only-matches
	Matches    []model.ClassifiedJob
}

// Runner executes runs against one store and session workspace.
type Runner struct {
	deps   Deps
	tracer trace.Tracer
	logger *slog.Logger
}

func New(deps Deps) *Runner {
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics()
	}
	return &Runner{deps: deps, tracer: telemetry.Tracer(), logger: deps.Logger}
}

// Window picks the publication window for a fetch: the override when given,
// otherwise the default once the query has been fetched before, otherwise
// unbounded.
func Window(override, defaultDays int, firstSearch bool) (int, error) {
	if override != 0 {
		if err := model.ValidateWindow(override); err != nil {
			return 0, err
		}
		return override, nil
	}
	if firstSearch {
		return 0, nil
	}
	return defaultDays, nil
}

// Run performs a full sync and classifies what changed.
func (r *Runner) Run(ctx context.Context, opts Options) (res *Result, err error) {
	ctx, span := r.tracer.Start(ctx, "run")
	defer func() { endSpan(span, err) }()

	if !opts.NoClassify && r.deps.Classifier == nil {
		return nil, errors.New("no classifier configured")
	}

	st, err := store.Load(ctx, r.deps.Backend, r.logger)
	if err != nil {
		return nil, fmt.Errorf("loading store: %w", err)
	}

	if !opts.UseStore {
		area := store.Area{Location: opts.Query.Wo, RadiusKM: opts.Query.RadiusKM}
		if err := st.ClaimArea(area); err != nil {
			return nil, err
		}
	}

	res = &Result{}
	if !opts.NoClassify {
		if res.Resumed, err = r.resumeInterrupted(ctx, opts); err != nil {
			return res, err
		}
	}

	var work []model.JobRecord
	if opts.UseStore {
		work, err = r.fromStore(st, opts.IDs)
		if err != nil {
			return nil, err
		}
		if !opts.NoScrape {
			var pending []model.JobRecord
			for _, rec := range work {
				if rec.Details == nil {
					pending = append(pending, rec)
				}
			}
			if err := r.enrich(ctx, st, pending, opts, res); err != nil {
				return nil, err
			}
			if work, err = st.Lookup(ids(work)); err != nil {
				return nil, err
			}
		}
	} else {
		if res.Window, err = Window(opts.WindowOverride, opts.DefaultWindow, !st.Searched(opts.Query.Ref())); err != nil {
			return nil, err
		}
		candidates, err := r.fetch(ctx, opts.Query, res.Window)
		if err != nil {
			return nil, err
		}
		res.Fetched = len(candidates)
		if r.deps.Filter != nil {
			candidates, res.Filtered = filter.Apply(r.deps.Filter, candidates)
		}

		res.Merge = st.Merge(candidates)
		st.RecordSearch(opts.Query.Ref())
		r.deps.Metrics.Merged(len(res.Merge.New), len(res.Merge.Updated), len(res.Merge.Unchanged))
		r.logger.Info("merged listings",
			"fetched", res.Fetched,
			"filtered", res.Filtered,
			"new", len(res.Merge.New),
			"updated", len(res.Merge.Updated),
			"unchanged", len(res.Merge.Unchanged),
		)

		work = res.Merge.Changed()
		if !opts.NoScrape {
			if err := r.enrich(ctx, st, work, opts, res); err != nil {
				return nil, err
			}
			if work, err = st.Lookup(ids(work)); err != nil {
				return nil, err
			}
		}
	}

	if err := st.Save(ctx); err != nil {
		return nil, fmt.Errorf("saving store: %w", err)
	}

	if opts.NoClassify {
		r.logger.Info("classification disabled, stopping after sync", "records", len(work))
		return res, nil
	}
	if len(work) == 0 {
		r.logger.Info("nothing new to classify")
		return res, nil
	}

	meta := session.Meta{
		Origin:   "fetch",
		Query:    opts.Query.Was,
		Location: opts.Query.Wo,
		Workflow: r.deps.Classifier.Criteria().Workflow,
	}
	if opts.UseStore {
		meta.Origin = "store"
	}
	sess, err := r.deps.Workspace.Create(work, meta)
	if err != nil {
		return nil, err
	}
	res.SessionID = sess.ID

	// a fresh session never has a checkpoint to resume
	opts.Resume = false
	if err := r.classifySession(ctx, sess, opts, res); err != nil {
		return res, err
	}
	return res, nil
}

// resumeInterrupted finishes every sync session a previous run left without
// final output. Records merged by that run are unchanged now, so nothing
// else would classify them. File sessions belong to classify-only and are
// left alone. With opts.Resume false each one restarts from its first batch.
func (r *Runner) resumeInterrupted(ctx context.Context, opts Options) ([]string, error) {
	infos, err := r.deps.Workspace.List()
	if err != nil {
		return nil, err
	}
	var resumed []string
	for _, info := range infos {
		if info.Status == session.StatusCompleted || info.Origin == "file" {
			continue
		}
		sess, err := r.deps.Workspace.Load(info.ID)
		if err != nil {
			return resumed, err
		}
		r.logger.Warn("resuming interrupted session",
			"session", info.ID,
			"status", info.Status,
			"items", info.Items,
		)
		o := opts
		o.Query.Was, o.Query.Wo = info.Query, info.Location
		if err := r.classifySession(ctx, sess, o, &Result{SessionID: info.ID}); err != nil {
			return resumed, fmt.Errorf("interrupted session %s: %w", info.ID, err)
		}
		resumed = append(resumed, info.ID)
	}
	return resumed, nil
}

// fromStore selects records for a store-only run: the listed ids, or every
// record no completed session has classified yet.
func (r *Runner) fromStore(st *store.Store, want []string) ([]model.JobRecord, error) {
	if len(want) > 0 {
		return st.Lookup(want)
	}
	done, err := classifiedIDs(r.deps.Workspace)
	if err != nil {
		return nil, err
	}
	var out []model.JobRecord
	for _, rec := range st.Records() {
		if !done[rec.ID] {
			out = append(out, rec)
		}
	}
	r.logger.Info("selected store records", "records", len(out), "already_classified", len(done))
	return out, nil
}

func classifiedIDs(ws *session.Workspace) (map[string]bool, error) {
	infos, err := ws.List()
	if err != nil {
		return nil, err
	}
	done := map[string]bool{}
	for _, info := range infos {
		if info.Status != session.StatusCompleted {
			continue
		}
		sess, err := ws.Load(info.ID)
		if err != nil {
			return nil, err
		}
		for _, rec := range sess.Snapshot() {
			done[rec.ID] = true
		}
	}
	return done, nil
}

// fetch queries every source. A failing source is logged and skipped; the
// run fails only when all of them fail.
func (r *Runner) fetch(ctx context.Context, q model.Query, window int) ([]model.JobRecord, error) {
	ctx, span := r.tracer.Start(ctx, "fetch", trace.WithAttributes(attribute.Int("window_days", window)))
	defer span.End()
	start := time.Now()

	q.WindowDays = window
	r.logger.Info("fetching listings", "was", q.Was, "wo", q.Wo, "window_days", window, "sources", len(r.deps.Sources))

	var (
		all    []model.JobRecord
		failed int
		errs   []error
	)
	for _, src := range r.deps.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := src.Fetcher.FetchListings(ctx, q)
		if err != nil {
			r.logger.Error("fetch failed", "source", src.Name, "error", err)
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		r.deps.Metrics.Listings(src.Name, len(recs))
		r.logger.Info("fetched listings", "source", src.Name, "count", len(recs))
		all = append(all, recs...)
	}
	r.deps.Metrics.ObserveStage("fetch", time.Since(start).Seconds())

	if len(r.deps.Sources) > 0 && failed == len(r.deps.Sources) {
		err := fmt.Errorf("all sources failed: %w", errors.Join(errs...))
		span.RecordError(err)
		return nil, err
	}
	return all, nil
}

// enrich scrapes recs and attaches the details to the store.
func (r *Runner) enrich(ctx context.Context, st *store.Store, recs []model.JobRecord, opts Options, res *Result) error {
	if r.deps.Scraper == nil || len(recs) == 0 {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "scrape", trace.WithAttributes(attribute.Int("records", len(recs))))
	defer span.End()
	start := time.Now()

	r.logger.Info("scraping details", "records", len(recs), "concurrency", opts.ScrapeConcurrency)
	details, err := scrape.All(ctx, r.deps.Scraper, recs, opts.ScrapeConcurrency, func(p scrape.Progress) {
		r.deps.Metrics.Scraped(p.Details.Warning)
		if !p.Details.Success {
			r.logger.Warn("scrape failed", "id", p.ID, "warning", p.Details.Warning, "error", p.Details.Error)
		}
		r.logger.Debug("scraped", "done", p.Done, "total", p.Total, "id", p.ID)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("scraping: %w", err)
	}

	for i, d := range details {
		if err := st.ApplyEnrichment(recs[i].ID, d); err != nil {
			return err
		}
	}
	res.Scrape = scrape.Summarize(details)
	r.deps.Metrics.ObserveStage("scrape", time.Since(start).Seconds())
	r.logger.Info("scraping complete",
		"records", res.Scrape.Total,
		"succeeded", res.Scrape.Succeeded,
		"failed", res.Scrape.Total-res.Scrape.Succeeded,
	)
	return nil
}

func ids(recs []model.JobRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
