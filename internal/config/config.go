// Package config loads config.yaml, applies defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobsync.
type Config struct {
	Store          StoreConfig
	Sessions       SessionsConfig
	Search         SearchConfig
	Arbeitsagentur ArbeitsagenturConfig
	Boards         []BoardConfig `validate:"dive"`
	Scrape         ScrapeConfig
	LLM            LLMConfig
	Classification ClassificationConfig
	Notification   NotificationConfig
	Telemetry      TelemetryConfig
	Watch          WatchConfig
}

type StoreConfig struct {
	Path    string `yaml:"path" validate:"required"`
	Backend string `yaml:"backend" validate:"oneof=json sqlite"`
}

type SessionsConfig struct {
	Root string `yaml:"root" validate:"required"`
}

// SearchConfig holds the default listing query and filters.
type SearchConfig struct {
	Was               string   `yaml:"was"`
	Wo                string   `yaml:"wo"`
	RadiusKM          int      `yaml:"radius_km" validate:"gte=0,lte=200"`
	PageSize          int      `yaml:"page_size" validate:"gte=1,lte=100"`
	MaxPages          int      `yaml:"max_pages" validate:"gte=1"`
	WorkTime          string   `yaml:"work_time" validate:"omitempty,oneof=vz tz ho snw mj"`
	TempAgency        bool     `yaml:"temp_agency"`
	DefaultWindowDays int      `yaml:"default_window_days" validate:"gte=1,lte=100"`
	ExcludeKeywords   []string `yaml:"exclude_keywords"`
	TitleKeywords     []string `yaml:"title_keywords"`
	Locations         []string `yaml:"locations"`
}

type ArbeitsagenturConfig struct {
	Enabled bool
	BaseURL string `validate:"required,url"`
	APIKey  string
	Timeout time.Duration `validate:"gt=0"`
}

// BoardConfig describes one company job board polled next to the
// Arbeitsagentur search.
type BoardConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Source  string `yaml:"source" validate:"oneof=greenhouse lever"`
	Token   string `yaml:"token" validate:"required"`
	Enabled bool   `yaml:"enabled"`
}

type ScrapeConfig struct {
	Delay           time.Duration `validate:"gte=0"`
	Timeout         time.Duration `validate:"gt=0"`
	Concurrency     int           `validate:"gte=1,lte=32"`
	MinChars        int           `validate:"gte=1"`
	BrowserFallback bool
}

// LLMConfig selects and configures the classification model.
type LLMConfig struct {
	Provider    string        `validate:"oneof=openrouter openai gemini"`
	BaseURL     string        `validate:"omitempty,url"`
	Model       string        `validate:"required"`
	APIKey      string        // resolved by ResolveAPIKey when empty
	Temperature float64       `validate:"gte=0,lte=2"`
	Timeout     time.Duration `validate:"gt=0"`
	MaxRetries  int           `validate:"gte=0,lte=10"`
	RetryDelay  time.Duration `validate:"gte=0"`
}

type ClassificationConfig struct {
	Workflow          string `yaml:"workflow" validate:"oneof=multi-category cv-based perfect-job"`
	BatchSize         int    `yaml:"batch_size" validate:"gte=1,lte=200"`
	MaxTextChars      int    `yaml:"max_text_chars" validate:"gte=0"`
	CategoriesFile    string `yaml:"categories_file"`
	CVFile            string `yaml:"cv_file"`
	PerfectJob        string `yaml:"perfect_job"`
	ReturnOnlyMatches bool   `yaml:"return_only_matches"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type" validate:"omitempty,oneof=log slack"`
	WebhookURL string `yaml:"webhook_url" validate:"required_if=Type slack"`
}

type TelemetryConfig struct {
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout otlp"`
	OTLPEndpoint  string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	MetricsFile   string `yaml:"metrics_file"`
}

type WatchConfig struct {
	Interval time.Duration `validate:"gt=0"`
}

const (
	DefaultPath = "config.yaml"
	EnvPath     = "JOBSYNC_CONFIG"

	defaultArbeitsagenturURL = "https://rest.arbeitsagentur.de/jobboerse/jobsuche-service"
	defaultArbeitsagenturKey = "jobboerse-jobsuche"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Store          StoreConfig          `yaml:"store"`
	Sessions       SessionsConfig       `yaml:"sessions"`
	Search         SearchConfig         `yaml:"search"`
	Arbeitsagentur rawArbeitsagentur    `yaml:"arbeitsagentur"`
	Boards         []BoardConfig        `yaml:"boards"`
	Scrape         rawScrapeConfig      `yaml:"scrape"`
	LLM            rawLLMConfig         `yaml:"llm"`
	Classification ClassificationConfig `yaml:"classification"`
	Notification   NotificationConfig   `yaml:"notification"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Watch          rawWatchConfig       `yaml:"watch"`
}

type rawArbeitsagentur struct {
	Enabled *bool  `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type rawScrapeConfig struct {
	Delay           string `yaml:"delay"`
	Timeout         string `yaml:"timeout"`
	Concurrency     int    `yaml:"concurrency"`
	MinChars        int    `yaml:"min_chars"`
	BrowserFallback bool   `yaml:"browser_fallback"`
}

type rawLLMConfig struct {
	Provider    string   `yaml:"provider"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	Temperature *float64 `yaml:"temperature"`
	Timeout     string   `yaml:"timeout"`
	MaxRetries  *int     `yaml:"max_retries"`
	RetryDelay  string   `yaml:"retry_delay"`
}

type rawWatchConfig struct {
	Interval string `yaml:"interval"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store:    StoreConfig{Path: "data/database/jobs.json", Backend: "json"},
		Sessions: SessionsConfig{Root: "data/searches"},
		Search: SearchConfig{
			RadiusKM:          25,
			PageSize:          100,
			MaxPages:          1,
			DefaultWindowDays: 7,
			ExcludeKeywords:   []string{"weiterbildung", "ausbildung"},
		},
		Arbeitsagentur: ArbeitsagenturConfig{
			Enabled: true,
			BaseURL: defaultArbeitsagenturURL,
			APIKey:  defaultArbeitsagenturKey,
			Timeout: 30 * time.Second,
		},
		Scrape: ScrapeConfig{
			Delay:       time.Second,
			Timeout:     15 * time.Second,
			Concurrency: 4,
			MinChars:    1000,
		},
		LLM: LLMConfig{
			Provider:    "openrouter",
			Model:       "google/gemini-2.5-flash",
			Temperature: 0.1,
			Timeout:     120 * time.Second,
			MaxRetries:  2,
			RetryDelay:  5 * time.Second,
		},
		Classification: ClassificationConfig{
			Workflow:     "multi-category",
			BatchSize:    100,
			MaxTextChars: 1000,
		},
		Notification: NotificationConfig{Type: "log"},
		Telemetry:    TelemetryConfig{TraceExporter: "none"},
		Watch:        WatchConfig{Interval: 24 * time.Hour},
	}
}

// Resolve picks the config path: the flag, then $JOBSYNC_CONFIG, then
// ./config.yaml. explicit is false only for the built-in default.
func Resolve(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// LoadResolved loads the resolved config path. A missing ./config.yaml
// yields Default(); a missing explicitly named file is an error.
func LoadResolved(flagPath string) (*Config, string, error) {
	path, explicit := Resolve(flagPath)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg := Default()
		return cfg, "", validate(cfg)
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if err := apply(cfg, &raw); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *Config, raw *rawConfig) error {
	setString(&cfg.Store.Path, raw.Store.Path)
	setString(&cfg.Store.Backend, raw.Store.Backend)
	setString(&cfg.Sessions.Root, raw.Sessions.Root)

	s := raw.Search
	setString(&cfg.Search.Was, s.Was)
	setString(&cfg.Search.Wo, s.Wo)
	setInt(&cfg.Search.RadiusKM, s.RadiusKM)
	setInt(&cfg.Search.PageSize, s.PageSize)
	setInt(&cfg.Search.MaxPages, s.MaxPages)
	setString(&cfg.Search.WorkTime, s.WorkTime)
	cfg.Search.TempAgency = s.TempAgency
	setInt(&cfg.Search.DefaultWindowDays, s.DefaultWindowDays)
	if s.ExcludeKeywords != nil {
		cfg.Search.ExcludeKeywords = s.ExcludeKeywords
	}
	cfg.Search.TitleKeywords = s.TitleKeywords
	cfg.Search.Locations = s.Locations

	if raw.Arbeitsagentur.Enabled != nil {
		cfg.Arbeitsagentur.Enabled = *raw.Arbeitsagentur.Enabled
	}
	setString(&cfg.Arbeitsagentur.BaseURL, raw.Arbeitsagentur.BaseURL)
	setString(&cfg.Arbeitsagentur.APIKey, raw.Arbeitsagentur.APIKey)
	if err := setDuration(&cfg.Arbeitsagentur.Timeout, raw.Arbeitsagentur.Timeout, "arbeitsagentur.timeout"); err != nil {
		return err
	}

	cfg.Boards = raw.Boards

	if err := setDuration(&cfg.Scrape.Delay, raw.Scrape.Delay, "scrape.delay"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Scrape.Timeout, raw.Scrape.Timeout, "scrape.timeout"); err != nil {
		return err
	}
	setInt(&cfg.Scrape.Concurrency, raw.Scrape.Concurrency)
	setInt(&cfg.Scrape.MinChars, raw.Scrape.MinChars)
	cfg.Scrape.BrowserFallback = raw.Scrape.BrowserFallback

	l := raw.LLM
	setString(&cfg.LLM.Provider, l.Provider)
	setString(&cfg.LLM.BaseURL, l.BaseURL)
	setString(&cfg.LLM.Model, l.Model)
	setString(&cfg.LLM.APIKey, l.APIKey)
	if l.Temperature != nil {
		cfg.LLM.Temperature = *l.Temperature
	}
	if l.MaxRetries != nil {
		cfg.LLM.MaxRetries = *l.MaxRetries
	}
	if err := setDuration(&cfg.LLM.Timeout, l.Timeout, "llm.timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.LLM.RetryDelay, l.RetryDelay, "llm.retry_delay"); err != nil {
		return err
	}

	c := raw.Classification
	setString(&cfg.Classification.Workflow, c.Workflow)
	setInt(&cfg.Classification.BatchSize, c.BatchSize)
	setInt(&cfg.Classification.MaxTextChars, c.MaxTextChars)
	cfg.Classification.CategoriesFile = c.CategoriesFile
	cfg.Classification.CVFile = c.CVFile
	cfg.Classification.PerfectJob = c.PerfectJob
	cfg.Classification.ReturnOnlyMatches = c.ReturnOnlyMatches

	setString(&cfg.Notification.Type, raw.Notification.Type)
	cfg.Notification.WebhookURL = raw.Notification.WebhookURL

	setString(&cfg.Telemetry.TraceExporter, raw.Telemetry.TraceExporter)
	cfg.Telemetry.OTLPEndpoint = raw.Telemetry.OTLPEndpoint
	cfg.Telemetry.MetricsFile = raw.Telemetry.MetricsFile

	return setDuration(&cfg.Watch.Interval, raw.Watch.Interval, "watch.interval")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, field string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", field, v, err)
	}
	*dst = d
	return nil
}

var validate = func() func(*Config) error {
	v := validator.New()
	return func(cfg *Config) error {
		err := v.Struct(cfg)
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			if err != nil {
				return err
			}
			return validateSlack(cfg.Notification)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s fails %s", field, fe.Tag()))
			}
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
}()

func validateSlack(n NotificationConfig) error {
	if n.Type == "slack" && !strings.HasPrefix(n.WebhookURL, "https://hooks.slack.com/") {
		return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
	}
	return nil
}

// Validate re-checks the config, e.g. after command-line overrides.
func (c *Config) Validate() error { return validate(c) }

// EnabledBoards returns the boards with enabled set.
func (c *Config) EnabledBoards() []BoardConfig {
	var out []BoardConfig
	for _, b := range c.Boards {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}
