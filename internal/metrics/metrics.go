package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statarb"

// Recorder counts what happens during a backtest run. Each recorder owns its
// registry so repeated runs in one process do not collide.
type Recorder struct {
	registry *prometheus.Registry

	PairsScreened   *prometheus.CounterVec
	PairsRejected   *prometheus.CounterVec
	PairsSelected   *prometheus.CounterVec
	BacktestsFailed *prometheus.CounterVec
	StopLosses      *prometheus.CounterVec
	Trades          *prometheus.CounterVec
	YearsSkipped    *prometheus.CounterVec
	YearPnL         *prometheus.GaugeVec
	StageDuration   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		PairsScreened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "selection",
				Name:      "pairs_screened_total",
				Help:      "Unordered symbol pairs considered",
			},
			[]string{"year"},
		),
		PairsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "selection",
				Name:      "pairs_rejected_total",
				Help:      "Pairs rejected by reason",
			},
			[]string{"year", "reason"},
		),
		PairsSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "selection",
				Name:      "pairs_selected_total",
				Help:      "Pairs passed to the backtester",
			},
			[]string{"year"},
		),
		BacktestsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backtest",
				Name:      "failures_total",
				Help:      "Pair backtests dropped on error",
			},
			[]string{"year"},
		),
		StopLosses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backtest",
				Name:      "stop_losses_total",
				Help:      "Pairs flattened by the stop-loss",
			},
			[]string{"year"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backtest",
				Name:      "round_trips_total",
				Help:      "Completed round-trip trades",
			},
			[]string{"year"},
		),
		YearsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "years_skipped_total",
				Help:      "Years that contributed no portfolio",
			},
			[]string{"reason"},
		),
		YearPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "portfolio",
				Name:      "year_pnl",
				Help:      "Closing cumulative P&L of each year",
			},
			[]string{"year"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
	}

	r.registry.MustRegister(
		r.PairsScreened,
		r.PairsRejected,
		r.PairsSelected,
		r.BacktestsFailed,
		r.StopLosses,
		r.Trades,
		r.YearsSkipped,
		r.YearPnL,
		r.StageDuration,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current values in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
