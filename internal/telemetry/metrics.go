package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what a run did. A CLI process lives for one run (or one
// watch loop), so the registry is written to a textfile instead of served.
type Metrics struct {
	registry       *prometheus.Registry
	listingsTotal  *prometheus.CounterVec
	mergeTotal     *prometheus.CounterVec
	scrapesTotal   *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	labelsTotal    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	lastRunSuccess prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		listingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsync_listings_fetched_total",
			Help: "Listings returned by a source, before filtering.",
		}, []string{"source"}),
		mergeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsync_merge_records_total",
			Help: "Merged candidates by outcome (new, updated, unchanged).",
		}, []string{"outcome"}),
		scrapesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsync_scrapes_total",
			Help: "Detail scrapes by result: ok or the warning code.",
		}, []string{"result"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsync_classification_batches_total",
			Help: "Classification batches by status.",
		}, []string{"status"}),
		labelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsync_classified_labels_total",
			Help: "Labels assigned by the classifier.",
		}, []string{"label"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobsync_stage_duration_seconds",
			Help:    "Duration of run stages.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180, 600, 1800},
		}, []string{"stage"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobsync_last_run_success",
			Help: "1 if the last run finished without error, else 0.",
		}),
	}

	m.registry.MustRegister(
		m.listingsTotal,
		m.mergeTotal,
		m.scrapesTotal,
		m.batchesTotal,
		m.labelsTotal,
		m.stageDuration,
		m.lastRunSuccess,
	)
	return m
}

func (m *Metrics) Listings(source string, n int) {
	m.listingsTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) Merged(newCount, updated, unchanged int) {
	m.mergeTotal.WithLabelValues("new").Add(float64(newCount))
	m.mergeTotal.WithLabelValues("updated").Add(float64(updated))
	m.mergeTotal.WithLabelValues("unchanged").Add(float64(unchanged))
}

// Scraped records one scrape; warning is empty on success.
func (m *Metrics) Scraped(warning string) {
	if warning == "" {
		warning = "ok"
	}
	m.scrapesTotal.WithLabelValues(warning).Inc()
}

func (m *Metrics) Batch(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.batchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Labels(labels []string) {
	for _, l := range labels {
		m.labelsTotal.WithLabelValues(l).Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RunFinished(err error) {
	if err != nil {
		m.lastRunSuccess.Set(0)
		return
	}
	m.lastRunSuccess.Set(1)
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteFile writes the metrics in the Prometheus text format, for the node
// exporter's textfile collector. An empty path is a no-op.
func (m *Metrics) WriteFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
