package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSetupTracing_None(t *testing.T) {
	for _, exporter := range []string{"", "none", " NONE "} {
		shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: exporter}, discard)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestSetupTracing_Errors(t *testing.T) {
	_, err := SetupTracing(context.Background(), TraceConfig{Exporter: "zipkin"}, discard)
	assert.ErrorContains(t, err, "unsupported trace exporter")

	_, err = SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, discard)
	assert.ErrorContains(t, err, "requires endpoint")
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Listings("arbeitsagentur", 40)
	m.Listings("arbeitsagentur", 2)
	m.Merged(3, 1, 38)
	m.Scraped("")
	m.Scraped("")
	m.Scraped("TIMEOUT")
	m.Batch(true)
	m.Batch(false)
	m.Labels([]string{"Java", "Python", "Java"})
	m.RunFinished(errors.New("boom"))

	assert.Equal(t, 42.0, testutil.ToFloat64(m.listingsTotal.WithLabelValues("arbeitsagentur")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.mergeTotal.WithLabelValues("new")))
	assert.Equal(t, 38.0, testutil.ToFloat64(m.mergeTotal.WithLabelValues("unchanged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scrapesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scrapesTotal.WithLabelValues("TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.labelsTotal.WithLabelValues("Java")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastRunSuccess))

	m.RunFinished(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastRunSuccess))
}

func TestMetricsWriteFile(t *testing.T) {
	m := NewMetrics()
	m.Merged(1, 0, 0)
	m.ObserveStage("scrape", 2.5)

	require.NoError(t, m.WriteFile(""))

	path := filepath.Join(t.TempDir(), "metrics", "jobsync.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jobsync_merge_records_total{outcome="new"} 1`)
	assert.Contains(t, string(data), `jobsync_stage_duration_seconds_count{stage="scrape"} 1`)
}
