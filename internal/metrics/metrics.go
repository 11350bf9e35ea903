// Package metrics provides Prometheus metrics for sync runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records engine and pipeline activity for one table. All methods
// are safe on a nil receiver, which records nothing.
type Metrics struct {
	table string

	runsTotal        *prometheus.CounterVec
	rowsTotal        *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	baselineRows     *prometheus.GaugeVec
	validationIssues *prometheus.GaugeVec
}

// New registers the collectors on reg. Use a fresh prometheus.Registry in
// tests; registering twice on the same registry panics.
func New(reg prometheus.Registerer, table string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		table: table,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablesync_runs_total",
				Help: "Total number of sync runs by final status",
			},
			[]string{"table", "status"},
		),
		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablesync_rows_total",
				Help: "Incoming rows by classification",
			},
			[]string{"table", "class"},
		),
		phaseDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablesync_phase_duration_seconds",
				Help:    "Time spent in each run phase",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"table", "phase"},
		),
		baselineRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tablesync_baseline_rows",
				Help: "Rows in the most recently produced baseline",
			},
			[]string{"table"},
		),
		validationIssues: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tablesync_validation_issues",
				Help: "Issues found by the last validation, per check",
			},
			[]string{"table", "check"},
		),
	}
}

// RunFinished counts a run with its final status ("committed", "dry_run",
// "failed", "already_applied").
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(m.table, status).Inc()
}

// AddRows counts rows of one classification.
func (m *Metrics) AddRows(class string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rowsTotal.WithLabelValues(m.table, class).Add(float64(n))
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(m.table, phase).Observe(d.Seconds())
}

// SetBaselineRows records the size of the current baseline.
func (m *Metrics) SetBaselineRows(n int) {
	if m == nil {
		return
	}
	m.baselineRows.WithLabelValues(m.table).Set(float64(n))
}

// SetValidationIssues records the issue count of one check.
func (m *Metrics) SetValidationIssues(check string, n int) {
	if m == nil {
		return
	}
	m.validationIssues.WithLabelValues(m.table, check).Set(float64(n))
}
