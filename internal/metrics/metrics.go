package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snapscan/internal"
	"snapscan/internal/scan"
)

// Metrics counts scan events per context. It is a scan notifier.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec
	UnitsTotal        *prometheus.CounterVec
	ListProgress      *prometheus.GaugeVec
	ListWeightScanned *prometheus.GaugeVec
}

type Config struct {
	Namespace string
	Subsystem string
}

func DefaultConfig() Config {
	return Config{Namespace: "snapscan", Subsystem: "station"}
}

func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_events_total",
			Help:      "Processed scan, undo and clear events",
		},
		[]string{"context", "action", "outcome"},
	)
	m.UnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scanned_units_total",
			Help:      "Units registered by accepted scans",
		},
		[]string{"context"},
	)
	m.ListProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "list_progress_percent",
			Help:      "Completion of the active list",
		},
		[]string{"context"},
	)
	m.ListWeightScanned = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "list_processed_weight",
			Help:      "Weight of processed units on the active list",
		},
		[]string{"context"},
	)

	registry.MustRegister(m.ScansTotal, m.UnitsTotal, m.ListProgress, m.ListWeightScanned)
	return m
}

func (m *Metrics) Notify(ev internal.ScanEvent) {
	ctx := string(ev.Context)
	m.ScansTotal.WithLabelValues(ctx, ev.Action, ev.Outcome).Inc()
	if ev.Action == scan.ActionScan && accepted(ev.Outcome) {
		m.UnitsTotal.WithLabelValues(ctx).Add(float64(ev.Quantity))
	}
	m.ListProgress.WithLabelValues(ctx).Set(float64(ev.Summary.Percentage))
	m.ListWeightScanned.WithLabelValues(ctx).Set(ev.Summary.ProcessedWeight)
}

func accepted(outcome string) bool {
	return outcome == scan.OutcomeOK || outcome == scan.OutcomeCreated || outcome == scan.OutcomeOverScan
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
