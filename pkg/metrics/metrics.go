// Package metrics exposes Prometheus counters for registry and attendance activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cousinade"

// Metrics groups the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HouseholdEdits  *prometheus.CounterVec
	ParentFallbacks prometheus.Counter
	AttendanceSaves prometheus.Counter
	ImportRows      *prometheus.CounterVec
	TotalsCache     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with a fresh registry that also
// carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors with reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		HouseholdEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "household_edits_total",
			Help:      "Household edit batches by result.",
		}, []string{"result"}),
		ParentFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parent_fallbacks_total",
			Help:      "Parent-child links whose unresolved parent was attributed to the household owner.",
		}),
		AttendanceSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_saves_total",
			Help:      "Committed attendance rewrites.",
		}),
		ImportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported rows by kind.",
		}, []string{"kind"}),
		TotalsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "totals_cache_lookups_total",
			Help:      "Attendance totals cache lookups by outcome.",
		}, []string{"outcome"}),
		gatherer: gatherer,
	}

	reg.MustRegister(m.HouseholdEdits, m.ParentFallbacks, m.AttendanceSaves, m.ImportRows, m.TotalsCache)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HouseholdEdit records one edit batch outcome ("ok" or "error") and its fallbacks.
func (m *Metrics) HouseholdEdit(result string, fallbacks int) {
	if m == nil {
		return
	}
	m.HouseholdEdits.WithLabelValues(result).Inc()
	if fallbacks > 0 {
		m.ParentFallbacks.Add(float64(fallbacks))
	}
}

// AttendanceSaved records one committed attendance rewrite.
func (m *Metrics) AttendanceSaved() {
	if m == nil {
		return
	}
	m.AttendanceSaves.Inc()
}

// ImportRow records one imported row of the given kind.
func (m *Metrics) ImportRow(kind string) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues(kind).Inc()
}

// TotalsLookup records a totals cache lookup outcome: "hit", "miss", "error", or
// "bypass" while the cache is known to be stale.
func (m *Metrics) TotalsLookup(outcome string) {
	if m == nil {
		return
	}
	m.TotalsCache.WithLabelValues(outcome).Inc()
}
