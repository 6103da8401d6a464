// Package metrics exposes run, payload and classification counters for
// Prometheus scraping.
//
// Every Metrics value owns its registry so tests and embedded servers never
// collide on the global default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waftester/greenapi/pkg/finding"
)

// NameOther is the verdict label for names outside the built-in rule set,
// which AI services may return as free text.
const NameOther = "other"

var knownVerdicts = map[string]bool{
	finding.NameNoneDetected:       true,
	finding.NameUnhandledException: true,
	finding.NameSQLiErrorBased:     true,
	finding.NameSQLiTimeBased:      true,
	finding.NameReflectedXSS:       true,
	finding.NameExecutionError:     true,
}

// Run outcomes.
const (
	OutcomeCompleted      = "completed"
	OutcomeBaselineFailed = "baseline_failed"
	OutcomeRejected       = "rejected"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	payloadsTotal  *prometheus.CounterVec
	verdictsTotal  *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	responseTime   *prometheus.HistogramVec
	runDuration    *prometheus.HistogramVec
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenapi_runs_total",
			Help: "Suite runs by outcome",
		}, []string{"suite", "outcome"}),
		payloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenapi_payloads_total",
			Help: "Payload requests by result (ok or error)",
		}, []string{"suite", "result"}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenapi_verdicts_total",
			Help: "Classification verdicts by name, severity and analysis mode",
		}, []string{"suite", "name", "severity", "mode"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenapi_ai_fallbacks_total",
			Help: "AI classifications that fell back to heuristic rules",
		}, []string{"suite"}),
		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenapi_response_time_seconds",
			Help:    "Target response time distribution",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"suite"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenapi_run_duration_seconds",
			Help:    "Wall time of a suite run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"suite"}),
	}
	m.registry.MustRegister(
		m.runsTotal,
		m.payloadsTotal,
		m.verdictsTotal,
		m.fallbacksTotal,
		m.responseTime,
		m.runDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RunFinished records a run and how long it took.
func (m *Metrics) RunFinished(suite, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(suite, outcome).Inc()
	if outcome != OutcomeRejected {
		m.runDuration.WithLabelValues(suite).Observe(elapsed.Seconds())
	}
}

// PayloadExecuted records one payload request. durationMs is ignored for
// failed requests.
func (m *Metrics) PayloadExecuted(suite string, ok bool, durationMs int64) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.payloadsTotal.WithLabelValues(suite, result).Inc()
	if ok {
		m.responseTime.WithLabelValues(suite).Observe(float64(durationMs) / 1000)
	}
}

// Verdict records a classification. Unknown names are counted as NameOther.
func (m *Metrics) Verdict(suite, name, severity, mode string) {
	if m == nil {
		return
	}
	if !knownVerdicts[name] {
		name = NameOther
	}
	m.verdictsTotal.WithLabelValues(suite, name, severity, mode).Inc()
}

// AIFallback records a classification that fell back to the rules.
func (m *Metrics) AIFallback(suite string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(suite).Inc()
}
