// Package metrics exposes Prometheus instrumentation for the ledger core.
//
// The collector owns its own registry so embedding applications can
// compose it without fighting the default global registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the ledger core metrics.
type Collector struct {
	registry *prometheus.Registry

	eventsAppended        *prometheus.CounterVec
	appendsRejected       *prometheus.CounterVec
	appendRetries         prometheus.Counter
	reconcileOutcomes     *prometheus.CounterVec
	opportunitiesFound    prometheus.Gauge
	alertsRaised          *prometheus.CounterVec
	projectionFoldSeconds prometheus.Histogram
}

// NewCollector creates a Collector with a private registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		eventsAppended: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "dw_events_appended_total",
			Help: "Events committed to the log, by kind",
		}, []string{"kind"}),
		appendsRejected: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "dw_appends_rejected_total",
			Help: "Appends refused before commit, by error code",
		}, []string{"code"}),
		appendRetries: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dw_append_retries_total",
			Help: "Append attempts retried after a transient failure",
		}),
		reconcileOutcomes: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "dw_reconcile_outcomes_total",
			Help: "Reconciliation results, by outcome",
		}, []string{"outcome"}),
		opportunitiesFound: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "dw_opportunities_found",
			Help: "Arbitrage opportunities in the latest optimization run",
		}),
		alertsRaised: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "dw_alerts_raised_total",
			Help: "Alerts produced per evaluation cycle, by severity",
		}, []string{"severity"}),
		projectionFoldSeconds: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "dw_projection_fold_seconds",
			Help:    "Time to fold the event log into a snapshot",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// EventAppended records a committed event.
func (c *Collector) EventAppended(kind string) {
	if c == nil {
		return
	}
	c.eventsAppended.WithLabelValues(kind).Inc()
}

// AppendRejected records a refused append.
func (c *Collector) AppendRejected(code string) {
	if c == nil {
		return
	}
	c.appendsRejected.WithLabelValues(code).Inc()
}

// AppendRetried records a retried append attempt.
func (c *Collector) AppendRetried() {
	if c == nil {
		return
	}
	c.appendRetries.Inc()
}

// ReconcileOutcome records a reconciliation result.
func (c *Collector) ReconcileOutcome(outcome string) {
	if c == nil {
		return
	}
	c.reconcileOutcomes.WithLabelValues(outcome).Inc()
}

// OpportunitiesFound records the size of the latest opportunity set.
func (c *Collector) OpportunitiesFound(n int) {
	if c == nil {
		return
	}
	c.opportunitiesFound.Set(float64(n))
}

// AlertRaised records an alert by severity.
func (c *Collector) AlertRaised(severity string) {
	if c == nil {
		return
	}
	c.alertsRaised.WithLabelValues(severity).Inc()
}

// ObserveFold records a projection fold duration in seconds.
func (c *Collector) ObserveFold(seconds float64) {
	if c == nil {
		return
	}
	c.projectionFoldSeconds.Observe(seconds)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
