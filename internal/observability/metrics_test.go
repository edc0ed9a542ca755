package observability

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(testLogger)
	m.PagesFetched.Add(3)
	m.ImagesDownloaded.Inc()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, values["imgharvest_listing_pages_fetched_total"])
	assert.Equal(t, 1.0, values["imgharvest_images_downloaded_total"])
	assert.Equal(t, 0.0, values["imgharvest_images_failed_total"])
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics(testLogger)
	m.PostsDiscovered.Add(2)

	path := filepath.Join(t.TempDir(), "imgharvest.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "imgharvest_posts_discovered_total 2")
	assert.Contains(t, string(raw), "imgharvest_last_run_timestamp_seconds")
}

func TestWriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, NewMetrics(testLogger).WriteTextfile(""))
}
