package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/config"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/pipeline"
	"github.com/amishk599/jobsync/internal/telemetry"
)

// runFlags are the overrides shared by run and watch.
type runFlags struct {
	was             string
	wo              string
	radius          int
	pageSize        int
	maxPages        int
	workTime        string
	tempAgency      bool
	includeTraining bool
	windowDays      int
	useStore        bool
	ids             []string
	noScrape        bool
	noClassify      bool
	workflow        string
	categories      string
	cv              string
	perfectJob      string
	returnAll       bool
	batchSize       int
	noResume        bool
	model           string
	provider        string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, merge, scrape and classify new listings",
	Long: `Fetches listings for the search, merges them into the record store,
scrapes new and updated records and classifies them in a new session.

Without --window-days the first run of a search query is unbounded and later
runs look back search.default_window_days days. A store is bound to the
location and radius of its first run; searching another area needs another
store.path.

Sessions a previous run left unfinished are classified first, continuing
from their checkpoint. With --no-resume they restart from the first batch.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.was, "was", "", "job title or keywords (default: search.was)")
	f.StringVar(&runOpts.wo, "wo", "", "location (default: search.wo)")
	f.IntVar(&runOpts.radius, "radius", 0, "search radius in km")
	f.IntVar(&runOpts.pageSize, "page-size", 0, "listings per page (max 100)")
	f.IntVar(&runOpts.maxPages, "max-pages", 0, "maximum pages to fetch")
	f.StringVar(&runOpts.workTime, "work-time", "", "vz, tz, ho, snw or mj")
	f.BoolVar(&runOpts.tempAgency, "temp-agency", false, "include temporary agency listings")
	f.BoolVar(&runOpts.includeTraining, "include-training", false, "keep Weiterbildung/Ausbildung listings")
	f.IntVar(&runOpts.windowDays, "window-days", 0, "publication window in days (1-100)")
	f.BoolVar(&runOpts.useStore, "use-store", false, "classify store records instead of fetching")
	f.StringSliceVar(&runOpts.ids, "ids", nil, "with --use-store: classify exactly these record ids")
	f.BoolVar(&runOpts.noScrape, "no-scrape", false, "skip detail scraping")
	f.BoolVar(&runOpts.noClassify, "no-classify", false, "stop after the store is updated")
	addClassifyFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

// addClassifyFlags registers the flags every classifying command shares.
func addClassifyFlags(cmd *cobra.Command, o *runFlags) {
	f := cmd.Flags()
	f.StringVar(&o.workflow, "workflow", "", "multi-category, cv-based or perfect-job")
	f.StringVar(&o.categories, "categories", "", "categories YAML file for multi-category")
	f.StringVar(&o.cv, "cv", "", "CV text file for cv-based")
	f.StringVar(&o.perfectJob, "perfect-job", "", "perfect job description, inline or a file path")
	f.BoolVar(&o.returnAll, "return-all", false, "write all classified jobs, not only matches")
	f.IntVar(&o.batchSize, "batch-size", 0, "jobs per LLM request")
	f.BoolVar(&o.noResume, "no-resume", false, "discard checkpoints and classify from the first batch")
	f.StringVar(&o.model, "model", "", "LLM model")
	f.StringVar(&o.provider, "provider", "", "openrouter, openai or gemini")
}

// apply copies set flags over the config.
func (o *runFlags) apply(cfg *config.Config) {
	s := &cfg.Search
	setIf(&s.Was, o.was)
	setIf(&s.Wo, o.wo)
	setIfInt(&s.RadiusKM, o.radius)
	setIfInt(&s.PageSize, o.pageSize)
	setIfInt(&s.MaxPages, o.maxPages)
	setIf(&s.WorkTime, o.workTime)
	if o.tempAgency {
		s.TempAgency = true
	}

	c := &cfg.Classification
	setIf(&c.Workflow, o.workflow)
	setIf(&c.CategoriesFile, o.categories)
	setIf(&c.CVFile, o.cv)
	setIf(&c.PerfectJob, o.perfectJob)
	setIfInt(&c.BatchSize, o.batchSize)
	if o.returnAll {
		c.ReturnOnlyMatches = false
	}
	setIf(&cfg.LLM.Model, o.model)
	setIf(&cfg.LLM.Provider, o.provider)
}

func searchQuery(cfg *config.Config) model.Query {
	s := cfg.Search
	return model.Query{
		Was:        s.Was,
		Wo:         s.Wo,
		RadiusKM:   s.RadiusKM,
		PageSize:   s.PageSize,
		MaxPages:   s.MaxPages,
		WorkTime:   s.WorkTime,
		TempAgency: s.TempAgency,
	}
}

func (o *runFlags) options(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Query:             searchQuery(cfg),
		WindowOverride:    o.windowDays,
		DefaultWindow:     cfg.Search.DefaultWindowDays,
		UseStore:          o.useStore,
		IDs:               o.ids,
		NoScrape:          o.noScrape,
		NoClassify:        o.noClassify,
		ScrapeConcurrency: cfg.Scrape.Concurrency,
		BatchSize:         cfg.Classification.BatchSize,
		Resume:            !o.noResume,
		ReturnOnlyMatches: cfg.Classification.ReturnOnlyMatches,
		Model:             cfg.LLM.Model,
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setIfInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// runner wires a pipeline.Runner from the config. The returned cleanup
// releases the store lock and flushes telemetry.
type runner struct {
	*pipeline.Runner
	metrics *telemetry.Metrics
	cleanup func(error)
}

// newRunner builds all collaborators. withStore and withClassifier select
// what the command needs.
func newRunner(ctx context.Context, cfg *config.Config, o *runFlags, withStore, withClassifier bool) (*runner, error) {
	logger := setupLogger(debug)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	metrics := telemetry.NewMetrics()

	finish, err := setupTelemetry(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){}
	cleanup := func(runErr error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		finish(runErr)
	}

	deps := pipeline.Deps{
		Workspace: newWorkspace(cfg, logger),
		Notifier:  setupNotifier(cfg, httpClient, logger),
		Metrics:   metrics,
		Logger:    logger,
	}

	if withStore {
		backend, release, err := openStore(cfg)
		if err != nil {
			cleanup(err)
			return nil, err
		}
		closers = append(closers, release)
		deps.Backend = backend

		router := buildScraper(cfg, logger)
		deps.Sources = buildSources(cfg, router, httpClient, logger)
		deps.Scraper = router
		deps.Filter = buildFilter(cfg, o.includeTraining)
	}

	if withClassifier {
		cl, closeFn, err := buildClassifier(ctx, cfg, logger)
		if err != nil {
			cleanup(err)
			return nil, err
		}
		closers = append(closers, closeFn)
		deps.Classifier = cl
	}

	return &runner{Runner: pipeline.New(deps), metrics: metrics, cleanup: cleanup}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	runOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid options", err)
	}

	ctx, stop := signalContext()
	defer stop()

	r, err := newRunner(ctx, cfg, &runOpts, true, !runOpts.noClassify)
	if err != nil {
		fatal(logger, "setup failed", err)
	}

	res, err := r.Run(ctx, runOpts.options(cfg))
	r.cleanup(err)
	if err != nil {
		reportBatchFailure(err)
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	printResult(res)
	return nil
}
