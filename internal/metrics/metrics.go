// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline collectors. Construct one per process and
// inject it; tests use their own registry.
type Metrics struct {
	registry *prometheus.Registry

	// PostingsDiscovered counts newly stored postings.
	PostingsDiscovered prometheus.Counter
	// PostingsSkipped counts candidates short-circuited by dedup.
	PostingsSkipped prometheus.Counter
	// Applications counts application outcomes, labeled by status.
	Applications *prometheus.CounterVec
	// BrowserContexts gauges currently open browser processes.
	BrowserContexts prometheus.Gauge
	// ScanPages counts scanned listing pages, labeled by result.
	ScanPages *prometheus.CounterVec
	// LetterGenerations counts cover-letter generation outcomes.
	LetterGenerations *prometheus.CounterVec
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		PostingsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobpilot_postings_discovered_total",
			Help: "Total number of new postings stored.",
		}),
		PostingsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobpilot_postings_skipped_total",
			Help: "Total number of candidates skipped because they were already stored.",
		}),
		Applications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobpilot_applications_total",
			Help: "Total number of application attempts, labeled by status.",
		}, []string{"status"}),
		BrowserContexts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jobpilot_browser_contexts_open",
			Help: "Number of browser contexts currently open.",
		}),
		ScanPages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobpilot_scan_pages_total",
			Help: "Total number of listing pages scanned, labeled by result.",
		}, []string{"result"}),
		LetterGenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobpilot_letter_generations_total",
			Help: "Total number of cover-letter generation attempts, labeled by result.",
		}, []string{"result"}),
	}
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
