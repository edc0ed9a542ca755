package observability

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "imgharvest"

// Metrics tracks counters for one crawl pass.
type Metrics struct {
	PagesFetched     prometheus.Counter
	PagesFailed      prometheus.Counter
	PostsDiscovered  prometheus.Counter
	ArticlesFailed   prometheus.Counter
	ImagesFound      prometheus.Counter
	ImagesDownloaded prometheus.Counter
	ImagesFailed     prometheus.Counter
	BytesWritten     prometheus.Counter
	LastRunTimestamp prometheus.Gauge

	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewMetrics creates the counters on a private registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		PagesFetched:     counter("listing_pages_fetched_total", "Listing pages fetched and parsed"),
		PagesFailed:      counter("listing_pages_failed_total", "Listing pages that failed to fetch or parse"),
		PostsDiscovered:  counter("posts_discovered_total", "New posts discovered by the frontier"),
		ArticlesFailed:   counter("articles_failed_total", "Articles whose page could not be fetched or parsed"),
		ImagesFound:      counter("images_found_total", "Content images found in new articles"),
		ImagesDownloaded: counter("images_downloaded_total", "Images written to disk"),
		ImagesFailed:     counter("images_failed_total", "Images that failed to download"),
		BytesWritten:     counter("bytes_written_total", "Image bytes written to disk"),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last crawl pass finished",
		}),
		registry: reg,
		logger:   logger.With("component", "metrics"),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the registry in the node exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	m.LastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	m.logger.Debug("metrics written", "path", path)
	return nil
}
