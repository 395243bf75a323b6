// Package metrics holds the Prometheus registry for the pricing worker.
// The HTTP layer exposes it on /metrics; the updater and tracker feed it.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds all Prometheus metrics for the pricer.
type Registry struct {
	reg *prometheus.Registry

	// Cycle metrics
	CycleDuration  prometheus.Histogram
	CyclesTotal    prometheus.Counter
	CycleOverruns  prometheus.Counter
	ListingsPriced prometheus.Counter

	// Tick publishing
	TicksPublished *prometheus.CounterVec
	PublishErrors  prometheus.Counter

	// Persistence
	PriceWriteErrors   prometheus.Counter
	HistoryWriteErrors prometheus.Counter

	// Boundary pressure
	ListingsAtFloor   prometheus.Gauge
	ListingsAtCeiling prometheus.Gauge

	// Demand tracker
	SignalsIngested  *prometheus.CounterVec
	TrackedListings  prometheus.Gauge
	WindowBuyerCount prometheus.Gauge
}

// NewRegistry creates a registry with all pricer metrics registered on a
// dedicated Prometheus registry, so tests can build as many as they like.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricer_cycle_duration_seconds",
				Help:    "Duration of one full pricing cycle in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),

		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricer_cycles_total",
				Help: "Total number of pricing cycles completed",
			},
		),

		CycleOverruns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricer_cycle_overruns_total",
				Help: "Cycles that ran longer than the update interval",
			},
		),

		ListingsPriced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricer_listings_priced_total",
				Help: "Total number of listings priced across all cycles",
			},
		),

		TicksPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_ticks_published_total",
				Help: "Price ticks published to the prices channel by direction",
			},
			[]string{"direction"},
		),

		PublishErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricer_publish_errors_total",
				Help: "Failed tick publishes (non-fatal, price still persisted)",
			},
		),

		PriceWriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricer_price_write_errors_total",
				Help: "Failed stored-price writes (listing skipped for the cycle)",
			},
		),

		HistoryWriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricer_history_write_errors_total",
				Help: "Failed snapshot, result or history writes (non-fatal)",
			},
		),

		ListingsAtFloor: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricer_listings_at_floor",
				Help: "Listings whose last computed price sat on the floor",
			},
		),

		ListingsAtCeiling: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricer_listings_at_ceiling",
				Help: "Listings whose last computed price sat on the ceiling",
			},
		),

		SignalsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_signals_ingested_total",
				Help: "Demand signals accepted by the tracker by kind",
			},
			[]string{"kind"},
		),

		TrackedListings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricer_tracked_listings",
				Help: "Listings with live demand windows",
			},
		),

		WindowBuyerCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricer_window_unique_buyers",
				Help: "Unique buyers across all current demand windows",
			},
		),
	}

	r.reg.MustRegister(
		r.CycleDuration,
		r.CyclesTotal,
		r.CycleOverruns,
		r.ListingsPriced,
		r.TicksPublished,
		r.PublishErrors,
		r.PriceWriteErrors,
		r.HistoryWriteErrors,
		r.ListingsAtFloor,
		r.ListingsAtCeiling,
		r.SignalsIngested,
		r.TrackedListings,
		r.WindowBuyerCount,
	)

	return r
}

// Prometheus returns the underlying registry for the /metrics handler.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// CounterValue reads a plain counter's current value, for health
// snapshots and tests.
func (r *Registry) CounterValue(c prometheus.Counter) (float64, error) {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return m.GetCounter().GetValue(), nil
}

// GaugeValue reads a gauge's current value.
func (r *Registry) GaugeValue(g prometheus.Gauge) (float64, error) {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0, fmt.Errorf("failed to read gauge: %w", err)
	}
	return m.GetGauge().GetValue(), nil
}
