// Package metrics provides Prometheus metrics for the matching drivers
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchMetrics contains Prometheus metrics for matching runs.
//
// A nil *MatchMetrics is valid and records nothing, so drivers can run without a registry.
type MatchMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	rowsCheckedTotal *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	lastChanged      *prometheus.GaugeVec
}

// NewMatchMetrics creates and registers new match metrics
func NewMatchMetrics(registry prometheus.Registerer) (*MatchMetrics, error) {
	m := &MatchMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MatchMetrics) initMetrics() {
	m.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prematch_attempts_total",
			Help: "Total number of match attempts by method and outcome",
		},
		[]string{"method", "outcome"}, // method: hash, title, filename
	)

	m.rowsCheckedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prematch_rows_checked_total",
			Help: "Total number of candidate rows inspected by a driver",
		},
		[]string{"driver"},
	)

	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prematch_runs_total",
			Help: "Total number of driver runs by final status",
		},
		[]string{"driver", "mode", "status"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "prematch_run_duration_seconds",
			Help: "Time taken by a driver run",
			// 10ms to ~80min
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"driver", "mode"},
	)

	m.lastChanged = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prematch_last_run_changed",
			Help: "Releases changed by the most recent run",
		},
		[]string{"driver", "mode"},
	)
}

// Describe implements the Collector interface
func (m *MatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.attemptsTotal.Describe(ch)
	m.rowsCheckedTotal.Describe(ch)
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.lastChanged.Describe(ch)
}

// Collect implements the Collector interface
func (m *MatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.attemptsTotal.Collect(ch)
	m.rowsCheckedTotal.Collect(ch)
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.lastChanged.Collect(ch)
}

// RecordAttempt records one lookup by method with its outcome
func (m *MatchMetrics) RecordAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordChecked records a row inspected by driver
func (m *MatchMetrics) RecordChecked(driver string) {
	if m == nil {
		return
	}
	m.rowsCheckedTotal.WithLabelValues(driver).Inc()
}

// RecordRun records a finished run
func (m *MatchMetrics) RecordRun(driver, mode, status string, changed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(driver, mode, status).Inc()
	m.runDuration.WithLabelValues(driver, mode).Observe(elapsed.Seconds())
	m.lastChanged.WithLabelValues(driver, mode).Set(float64(changed))
}
