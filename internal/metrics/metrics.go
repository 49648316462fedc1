// Package metrics records export and fetch activity as Prometheus metrics.
//
// Metrics:
//   - headat_exports_total: export calls by format and outcome
//   - headat_export_duration_seconds: backend write duration by format
//   - headat_fetch_artifacts_total: remote artifact downloads by outcome
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Export outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeSoftFail     = "soft_fail"
	OutcomeBackendError = "backend_error"
	OutcomeRowLimit     = "row_limit"
	OutcomeUnsupported  = "unsupported"
	OutcomeNotLoaded    = "not_loaded"
)

// Fetch outcomes.
const (
	FetchOK     = "ok"
	FetchFailed = "failed"
)

const namespace = "headat"

// Collector owns its own registry so that tests and the CLI never touch
// the process-global default registry.
type Collector struct {
	registry *prometheus.Registry

	exportsTotal   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	fetchTotal     *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of export calls by format and outcome",
			},
			[]string{"format", "outcome"},
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of backend writes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
			},
			[]string{"format"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_artifacts_total",
				Help:      "Total number of remote artifacts fetched by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(c.exportsTotal, c.exportDuration, c.fetchTotal)
	return c
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveExport counts one export call. A zero duration is not observed,
// since no backend ran.
func (c *Collector) ObserveExport(format, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.exportsTotal.WithLabelValues(format, outcome).Inc()
	if d > 0 {
		c.exportDuration.WithLabelValues(format).Observe(d.Seconds())
	}
}

// ObserveArtifact counts one remote artifact download attempt.
func (c *Collector) ObserveArtifact(outcome string) {
	if c == nil {
		return
	}
	c.fetchTotal.WithLabelValues(outcome).Inc()
}

// WriteTextfile dumps the current metric values in the Prometheus text
// format, for pickup by a node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
