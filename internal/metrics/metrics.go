// Package metrics exposes Prometheus collectors for migration passes and
// cache purges. A CLI run writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/coherence/internal/cachepurge"
	"github.com/roach88/coherence/internal/reconcile"
)

const namespace = "coherence"

// Metrics holds the collectors and the registry they are registered on.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	boots           *prometheus.CounterVec
	passes          *prometheus.CounterVec
	purgedKeys      *prometheus.CounterVec
	failures        *prometheus.CounterVec
	passDuration    prometheus.Histogram
	deletedCaches   prometheus.Counter
	cacheErrors     prometheus.Counter
	updateChecks    *prometheus.CounterVec
	lastUpdateEpoch prometheus.Gauge
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		boots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boots_total",
				Help:      "Version checks by decision.",
			},
			[]string{"decision"},
		),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "passes_total",
				Help:      "Reconciliation passes by reason.",
			},
			[]string{"reason"},
		),
		purgedKeys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "purged_keys_total",
				Help:      "Keys deleted by reconciliation, by store.",
			},
			[]string{"store"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "failures_total",
				Help:      "Per-key storage failures during reconciliation, by stage.",
			},
			[]string{"stage"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "pass_duration_seconds",
				Help:      "Duration of reconciliation passes.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),
		deletedCaches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "deleted_total",
				Help:      "Named caches deleted.",
			},
		),
		cacheErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Errors while purging named caches.",
			},
		),
		updateChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "update_checks_total",
				Help:      "Update worker checks by result.",
			},
			[]string{"result"},
		),
		lastUpdateEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_update_timestamp_seconds",
				Help:      "Unix time of the last completed reconciliation pass.",
			},
		),
	}

	m.Registry.MustRegister(
		m.boots,
		m.passes,
		m.purgedKeys,
		m.failures,
		m.passDuration,
		m.deletedCaches,
		m.cacheErrors,
		m.updateChecks,
		m.lastUpdateEpoch,
	)
	return m
}

// ObserveBoot counts one version check.
func (m *Metrics) ObserveBoot(decision string) {
	if m == nil {
		return
	}
	m.boots.WithLabelValues(decision).Inc()
}

// ObservePass records a reconciliation pass.
func (m *Metrics) ObservePass(rec reconcile.Record) {
	if m == nil || !rec.Triggered {
		return
	}
	m.passes.WithLabelValues(rec.Reason).Inc()
	m.purgedKeys.WithLabelValues("durable").Add(float64(len(rec.ClearedKeys)))
	m.purgedKeys.WithLabelValues("session").Add(float64(len(rec.ClearedSessionKeys)))
	for _, f := range rec.Failures {
		m.failures.WithLabelValues(f.Stage).Inc()
	}
	m.passDuration.Observe(rec.Duration.Seconds())
	m.lastUpdateEpoch.Set(float64(rec.Timestamp.Unix()))
}

// ObservePurge records a finished cache purge. Safe to call from the purge
// goroutine.
func (m *Metrics) ObservePurge(res cachepurge.Result) {
	if m == nil {
		return
	}
	m.deletedCaches.Add(float64(len(res.Deleted)))
	m.cacheErrors.Add(float64(len(res.Errors)))
	if !res.WorkerChecked {
		return
	}
	result := "ok"
	if res.WorkerErr != nil {
		result = "error"
	}
	m.updateChecks.WithLabelValues(result).Inc()
}

// WriteTextfile writes every collector to path in the text exposition
// format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
