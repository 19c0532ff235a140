// Package service orchestrates one planning run end to end: loading
// site configuration, reconciling the target, searching for the
// minimum-cost feasible schedule, and persisting the result.
package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and histograms a run updates. Construct
// once per process and register with a prometheus.Registerer; nil is a
// valid *Metrics whose methods are no-ops, so callers that don't wire up
// a registry don't need to guard every call site.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	advisoryTotal   *prometheus.CounterVec
	regimeSkipped   prometheus.Counter
}

// NewMetrics creates and registers the planner's Prometheus collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_runs_total",
			Help: "Total planning runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_run_duration_seconds",
			Help:    "Wall-clock duration of a planning run.",
			Buckets: prometheus.DefBuckets,
		}),
		advisoryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_advisory_conditions_total",
			Help: "Advisory boundary conditions encountered during reconciliation, by kind.",
		}, []string{"kind"}),
		regimeSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_regime_recalculation_skipped_total",
			Help: "Runs that found the existing plan still within bounds and skipped recalculation.",
		}),
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.advisoryTotal, m.regimeSkipped)
	return m
}

func (m *Metrics) observeRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) observeAdvisory(kind string) {
	if m == nil {
		return
	}
	m.advisoryTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeSkipped() {
	if m == nil {
		return
	}
	m.regimeSkipped.Inc()
}
