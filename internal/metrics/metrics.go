// Package metrics exposes the engine's Prometheus collectors. Handlers and
// workers record through a Metrics value so tests can register against an
// isolated registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the engine records into.
type Metrics struct {
	IngestTotal     *prometheus.CounterVec
	DuplicatesTotal prometheus.Counter
	RaceTimeouts    prometheus.Counter
	LLMFailures     prometheus.Counter
	ReconcileTotal  *prometheus.CounterVec
	AlertsTotal     prometheus.Counter
	IngestDuration  prometheus.Histogram
}

// New registers the engine's collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_ingest_total",
			Help: "Feedback messages ingested, by classification source.",
		}, []string{"source"}),
		DuplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_ingest_duplicates_total",
			Help: "Ingest requests resolved to an existing record by content hash.",
		}),
		RaceTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_race_timeouts_total",
			Help: "Classification races lost to the deadline.",
		}),
		LLMFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_llm_failures_total",
			Help: "LLM calls that errored or returned unusable replies.",
		}),
		ReconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_reconcile_total",
			Help: "Reconciliation attempts by outcome.",
		}, []string{"outcome"}),
		AlertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_alerts_total",
			Help: "Urgent-feedback alerts dispatched.",
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_ingest_duration_seconds",
			Help:    "End-to-end ingest latency.",
			Buckets: []float64{.01, .05, .1, .25, .45, .5, 1, 2.5, 5},
		}),
	}
}

// RaceTimeout counts a classification race lost to its deadline.
func (m *Metrics) RaceTimeout() { m.RaceTimeouts.Inc() }

// LLMFailure counts a failed or unusable LLM reply.
func (m *Metrics) LLMFailure() { m.LLMFailures.Inc() }

// Reconcile outcome labels.
const (
	OutcomeUpgraded = "upgraded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeReview   = "needs_review"
)
