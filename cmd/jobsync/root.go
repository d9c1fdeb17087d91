package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/adapter"
	"github.com/amishk599/jobsync/internal/ai"
	"github.com/amishk599/jobsync/internal/audit"
	"github.com/amishk599/jobsync/internal/checkpoint"
	"github.com/amishk599/jobsync/internal/classify"
	"github.com/amishk599/jobsync/internal/config"
	"github.com/amishk599/jobsync/internal/filter"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/notifier"
	"github.com/amishk599/jobsync/internal/pipeline"
	"github.com/amishk599/jobsync/internal/ratelimit"
	"github.com/amishk599/jobsync/internal/retry"
	"github.com/amishk599/jobsync/internal/scrape"
	"github.com/amishk599/jobsync/internal/session"
	"github.com/amishk599/jobsync/internal/store"
	"github.com/amishk599/jobsync/internal/telemetry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "jobsync",
	Short:         "Incremental job search sync with LLM classification",
	Long:          "jobsync fetches job listings, keeps a local record store, scrapes what changed and classifies it in resumable sessions.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSYNC_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// loadConfig reads .env, then resolves and parses the config file.
// Priority: --config > JOBSYNC_CONFIG > ./config.yaml
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, path, err := config.LoadResolved(cfgPath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		logger.Debug("no config file found, using defaults")
	} else {
		logger.Debug("config loaded", "path", path)
	}
	return cfg, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func fetchPolicy(logger *slog.Logger) retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: 5 * time.Second, Logger: logger}
}

// buildSources returns the Arbeitsagentur search and every enabled board,
// each behind retry and rate limiting. Boards also register their detail
// scrapers on router.
func buildSources(cfg *config.Config, router *scrape.Router, httpClient *http.Client, logger *slog.Logger) []pipeline.Source {
	limiter := ratelimit.NewHostLimiter(cfg.Scrape.Delay)
	policy := fetchPolicy(logger)

	var sources []pipeline.Source
	if cfg.Arbeitsagentur.Enabled {
		aaClient := &http.Client{Timeout: cfg.Arbeitsagentur.Timeout}
		aa := adapter.NewArbeitsagentur(cfg.Arbeitsagentur.BaseURL, cfg.Arbeitsagentur.APIKey, aaClient, logger)
		sources = append(sources, pipeline.Source{
			Name:    aa.Name(),
			Fetcher: retry.NewFetcher(ratelimit.NewFetcher(aa, limiter, aa.Name()), policy),
		})
	}

	for _, b := range cfg.EnabledBoards() {
		var (
			fetcher model.ListingFetcher
			scraper model.DetailScraper
			name    string
			prefix  string
		)
		switch b.Source {
		case adapter.SourceGreenhouse:
			gh := adapter.NewGreenhouseBoard(b.Token, b.Name, httpClient)
			fetcher, scraper, name, prefix = gh, gh, gh.Name(), gh.Prefix()
		case adapter.SourceLever:
			lv := adapter.NewLeverBoard(b.Token, b.Name, httpClient)
			fetcher, scraper, name, prefix = lv, lv, lv.Name(), lv.Prefix()
		default:
			logger.Warn("unsupported board source, skipping", "board", b.Name, "source", b.Source)
			continue
		}
		if router != nil {
			router.Handle(prefix, scraper)
		}
		sources = append(sources, pipeline.Source{
			Name:    name,
			Fetcher: retry.NewFetcher(ratelimit.NewFetcher(fetcher, limiter, b.Source), policy),
		})
		logger.Info("registered board", "name", b.Name, "source", b.Source)
	}
	return sources
}

// buildScraper returns the detail scraper: board records go to their board's
// API, everything else to the web scraper.
func buildScraper(cfg *config.Config, logger *slog.Logger) *scrape.Router {
	opts := scrape.Options{
		Timeout:  cfg.Scrape.Timeout,
		MinChars: cfg.Scrape.MinChars,
		Limiter:  ratelimit.NewHostLimiter(cfg.Scrape.Delay),
	}
	if cfg.Scrape.BrowserFallback {
		opts.Renderer = scrape.NewChromeRenderer(2 * cfg.Scrape.Timeout)
	}
	web := scrape.NewWebScraper(&http.Client{Timeout: cfg.Scrape.Timeout}, opts, logger)
	return scrape.NewRouter(web)
}

func buildFilter(cfg *config.Config, includeTraining bool) model.ListingFilter {
	excluded := cfg.Search.ExcludeKeywords
	if includeTraining {
		excluded = nil
	}
	return filter.All{
		filter.NewExcludeFilter(excluded),
		filter.NewTitleAndLocationFilter(cfg.Search.TitleKeywords, cfg.Search.Locations),
	}
}

// buildCriteria reads the workflow's inputs: the categories file, the CV or
// the perfect-job description.
func buildCriteria(c config.ClassificationConfig) (classify.Criteria, error) {
	switch c.Workflow {
	case classify.WorkflowCVBased:
		if c.CVFile == "" {
			return classify.Criteria{}, errors.New("cv-based workflow needs --cv or classification.cv_file")
		}
		cv, err := os.ReadFile(c.CVFile)
		if err != nil {
			return classify.Criteria{}, fmt.Errorf("reading cv: %w", err)
		}
		return classify.CVBased(string(cv))
	case classify.WorkflowPerfectJob:
		if c.PerfectJob == "" {
			return classify.Criteria{}, errors.New("perfect-job workflow needs --perfect-job or classification.perfect_job")
		}
		return classify.PerfectJob(classify.ReadTextArg(c.PerfectJob))
	default:
		cats := classify.DefaultCategories
		if c.CategoriesFile != "" {
			loaded, err := classify.LoadCategories(c.CategoriesFile)
			if err != nil {
				return classify.Criteria{}, err
			}
			cats = loaded
		}
		return classify.MultiCategory(cats)
	}
}

// buildProvider returns the LLM transport behind retry, and a closer.
func buildProvider(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (ai.LLMProvider, func(), error) {
	if err := config.ResolveAPIKey(&cfg); err != nil {
		return nil, nil, err
	}
	policy := retry.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryDelay, Logger: logger}

	switch cfg.Provider {
	case "gemini":
		gp, err := ai.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, nil, err
		}
		return retry.NewProvider(gp, policy), func() { gp.Close() }, nil
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = ai.DefaultOpenRouterURL
			if cfg.Provider == "openai" {
				baseURL = ai.DefaultOpenAIURL
			}
		}
		op := ai.NewOpenAIProvider(baseURL, cfg.APIKey, cfg.Model, cfg.Temperature, &http.Client{Timeout: cfg.Timeout})
		return retry.NewProvider(op, policy), func() {}, nil
	}
}

func buildClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Classifier, func(), error) {
	criteria, err := buildCriteria(cfg.Classification)
	if err != nil {
		return nil, nil, err
	}
	provider, closeFn, err := buildProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("classifier configured",
		"workflow", criteria.Workflow,
		"labels", len(criteria.Labels),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)
	return classify.NewClassifier(provider, criteria, cfg.Classification.MaxTextChars, cfg.LLM.Model, logger), closeFn, nil
}

// setupTelemetry starts tracing and returns a shutdown func that also writes
// the metrics file.
func setupTelemetry(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (func(error), error) {
	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		Exporter:     cfg.Telemetry.TraceExporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	}, logger)
	if err != nil {
		return nil, err
	}
	return func(runErr error) {
		metrics.RunFinished(runErr)
		if err := metrics.WriteFile(cfg.Telemetry.MetricsFile); err != nil {
			logger.Warn("writing metrics file failed", "error", err)
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}, nil
}

// openStore takes the store lock and opens the configured backend.
func openStore(cfg *config.Config) (store.Backend, func(), error) {
	lock, err := store.AcquireLock(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	backend, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		lock.Release()
		return nil, nil, err
	}
	return backend, func() {
		backend.Close()
		lock.Release()
	}, nil
}

func newWorkspace(cfg *config.Config, logger *slog.Logger) *session.Workspace {
	return session.NewWorkspace(cfg.Sessions.Root, logger)
}

// loadSession opens a session by id; "latest" is the most recent one.
func loadSession(ws *session.Workspace, id string) (*session.Session, error) {
	if id == "latest" {
		return ws.Latest()
	}
	return ws.Load(id)
}

// reportBatchFailure prints where classification stopped and how to continue.
func reportBatchFailure(err error) {
	var bf *checkpoint.BatchFailedError
	if !errors.As(err, &bf) {
		return
	}
	fmt.Fprintln(os.Stderr, audit.FailureBox("Classification failed",
		fmt.Sprintf("Session:  %s", bf.SessionID),
		fmt.Sprintf("Batch:    %d of %d (items %d-%d)", bf.Batch, bf.Batches, bf.Position, bf.Position+bf.Size-1),
		fmt.Sprintf("Error:    %v", bf.Err),
		"",
		"Completed batches are saved. Run",
		fmt.Sprintf("  jobsync resume %s", bf.SessionID),
		"to continue from this batch, or add --no-resume to start over.",
	))
}

func printResult(res *pipeline.Result) {
	if res == nil {
		return
	}
	for _, id := range res.Resumed {
		fmt.Printf("Finished interrupted session %s\n", id)
	}
	if res.SessionID == "" {
		fmt.Println("Nothing new to classify.")
		return
	}
	fmt.Printf("\nSession %s: %d classified, %d matches\n", res.SessionID, len(res.Classified), len(res.Matches))
}
