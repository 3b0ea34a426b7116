// Package metrics provides Prometheus metrics collection for the position
// manager. It defines and registers every counter, gauge, and histogram
// exposed on the metrics endpoint for monitoring and alerting.
package metrics

import (
	"bitunix-position-manager/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the position manager exposes.
type Metrics struct {
	ManagedPositions prometheus.Gauge
	ActionsTotal     *prometheus.CounterVec
	StopLossesTotal  prometheus.Counter
	TakeProfitsTotal prometheus.Counter

	MarginRatio         prometheus.Gauge
	MarginWarningsTotal prometheus.Counter

	NotifierFailuresTotal prometheus.Counter

	ExchangeRequestDuration prometheus.Histogram
	DetectTickDuration      prometheus.Histogram
	LevelCheckTickDuration  prometheus.Histogram
}

// New creates and registers every metric using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, useful for
// isolated collection in tests without touching the global registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ManagedPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "managed_positions",
			Help: "Number of positions currently under management",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "actions_total",
			Help: "Total number of confirmed close actions, by kind",
		}, []string{"kind"}),
		StopLossesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stop_losses_total",
			Help: "Total number of full stop-loss closes executed",
		}),
		TakeProfitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "take_profits_total",
			Help: "Total number of take-profit ladder closes executed",
		}),
		MarginRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "margin_ratio",
			Help: "Current account margin ratio",
		}),
		MarginWarningsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "margin_warnings_total",
			Help: "Total number of margin threshold warnings raised",
		}),
		NotifierFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifier_failures_total",
			Help: "Total number of notification deliveries that failed",
		}),
		ExchangeRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "exchange_request_duration_seconds",
			Help:    "Duration of exchange REST calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		DetectTickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "detect_tick_duration_seconds",
			Help:    "Duration of one position-detect tick in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LevelCheckTickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "level_check_tick_duration_seconds",
			Help:    "Duration of one level-check tick in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordAction increments the action counter for kind, plus the dedicated
// stop-loss/take-profit counters it corresponds to.
func (m *Metrics) RecordAction(kind domain.ActionKind) {
	m.ActionsTotal.WithLabelValues(string(kind)).Inc()
	switch kind {
	case domain.FullStopLoss:
		m.StopLossesTotal.Inc()
	case domain.TakeProfit:
		m.TakeProfitsTotal.Inc()
	}
}

// SetManagedPositions updates the managed-positions gauge.
func (m *Metrics) SetManagedPositions(n int) {
	m.ManagedPositions.Set(float64(n))
}

// SetMarginRatio updates the margin-ratio gauge and, when ratio meets or
// exceeds threshold, increments the warnings counter.
func (m *Metrics) SetMarginRatio(ratio, warnThreshold float64) {
	m.MarginRatio.Set(ratio)
	if ratio >= warnThreshold {
		m.MarginWarningsTotal.Inc()
	}
}
