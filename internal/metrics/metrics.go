// Package metrics exposes Prometheus instrumentation for evaluations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Metrics tracks evaluation volume, outcomes and latency.
type Metrics struct {
	Evaluations        *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	RuleFailures       *prometheus.CounterVec
	Activations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	CatalogRules       prometheus.Gauge
	CatalogReloads     *prometheus.CounterVec
}

// New registers all metrics on reg. A nil reg uses a fresh registry so
// tests can create any number of instances.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_evaluations_total",
			Help: "Completed supplier evaluations by final tier",
		}, []string{"tier"}),
		ValidationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_validation_failures_total",
			Help: "Evaluations rejected because the indicators failed validation",
		}),
		RuleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_rule_failures_total",
			Help: "Rule predicates or justifications that failed and were skipped",
		}, []string{"rule_id", "stage"}),
		Activations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_rule_activations_total",
			Help: "Rule activations by category and severity",
		}, []string{"category", "severity"}),
		EvaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_evaluation_duration_seconds",
			Help:    "Duration of a single supplier evaluation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		CatalogRules: f.NewGauge(prometheus.GaugeOpts{
			Name: "kestrel_catalog_rules",
			Help: "Number of rules in the active catalog",
		}),
		CatalogReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_catalog_reloads_total",
			Help: "Catalog reload attempts by result",
		}, []string{"result"}),
	}
}

// ObserveEvaluation records a completed evaluation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEvaluation(start time.Time, r domain.EvaluationResult) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
	m.Evaluations.WithLabelValues(string(r.FinalTier)).Inc()
	for _, a := range r.Activations {
		m.Activations.WithLabelValues(string(a.Category), string(a.Severity)).Inc()
	}
}

// IncrementValidationFailure records a rejected evaluation.
func (m *Metrics) IncrementValidationFailure() {
	if m == nil {
		return
	}
	m.ValidationFailures.Inc()
}

// RecordRuleFailure records a contained rule failure.
func (m *Metrics) RecordRuleFailure(err *domain.RulePredicateError) {
	if m == nil {
		return
	}
	m.RuleFailures.WithLabelValues(err.RuleID, err.Stage).Inc()
}

// RecordReload records a catalog reload attempt.
func (m *Metrics) RecordReload(rules int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CatalogReloads.WithLabelValues("error").Inc()
		return
	}
	m.CatalogReloads.WithLabelValues("ok").Inc()
	m.CatalogRules.Set(float64(rules))
}
