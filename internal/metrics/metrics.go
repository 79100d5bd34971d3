// Package metrics exports the control app's aggregate and loop health to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// Metrics holds the collectors updated once per tick.
type Metrics struct {
	values   *prometheus.GaugeVec
	inputs   *prometheus.GaugeVec
	ticks    prometheus.Counter
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
	sources  prometheus.Gauge
	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry, which is what Handler then serves.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sia_metric",
			Help: "Latest numeric value of each aggregated metric.",
		}, []string{"name"}),
		inputs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sia_input",
			Help: "State of each local digital input (1 = active).",
		}, []string{"name"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sia_ticks_total",
			Help: "Total aggregation ticks run.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sia_tick_errors_total",
			Help: "Errors encountered during ticks, by stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sia_tick_duration_seconds",
			Help:    "Time taken by one aggregation tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		sources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sia_registry_sources",
			Help: "Number of tag sources currently known to the registry.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.values, m.inputs, m.ticks, m.errors, m.duration, m.sources)
	return m
}

// Observe records one tick. Text metrics are not exported; absent metrics
// have their series removed so stale values are not scraped.
func (m *Metrics) Observe(agg logic.Metrics, inputs map[string]bool, sources int, took time.Duration) {
	for name, r := range agg.Flat() {
		if v, ok := r.Float(); ok {
			m.values.WithLabelValues(name).Set(v)
		} else {
			m.values.DeleteLabelValues(name)
		}
	}
	for name, on := range inputs {
		v := 0.0
		if on {
			v = 1
		}
		m.inputs.WithLabelValues(name).Set(v)
	}
	m.ticks.Inc()
	m.duration.Observe(took.Seconds())
	m.sources.Set(float64(sources))
}

// Error counts a failed tick stage such as "publish" or "gpio".
func (m *Metrics) Error(stage string) {
	m.errors.WithLabelValues(stage).Inc()
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
