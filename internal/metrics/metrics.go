// Package metrics exposes Prometheus counters for simulation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics. A nil *Registry is valid and
// records nothing, so callers never need to guard instrumentation.
type Registry struct {
	*prometheus.Registry

	ordersStaged    prometheus.Counter
	ordersFilled    prometheus.Counter
	ordersDiscarded prometheus.Counter
	tradesCompleted *prometheus.CounterVec
	signalsRejected prometheus.Counter
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		ordersStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execsim_orders_staged_total",
			Help: "Total number of signals staged as pending orders",
		}),
		ordersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execsim_orders_filled_total",
			Help: "Total number of staged orders that filled",
		}),
		ordersDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execsim_orders_discarded_total",
			Help: "Total number of staged orders discarded unfilled",
		}),
		tradesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execsim_trades_completed_total",
			Help: "Total number of completed trades",
		}, []string{"reason"}),
		signalsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execsim_signals_rejected_total",
			Help: "Total number of signals rejected at ingestion",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execsim_runs_total",
			Help: "Total number of simulation runs",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execsim_run_duration_seconds",
			Help:    "Simulation run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(r.ordersStaged)
	reg.MustRegister(r.ordersFilled)
	reg.MustRegister(r.ordersDiscarded)
	reg.MustRegister(r.tradesCompleted)
	reg.MustRegister(r.signalsRejected)
	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)

	return r
}

// OrderStaged records a staged order.
func (r *Registry) OrderStaged() {
	if r == nil {
		return
	}
	r.ordersStaged.Inc()
}

// OrderFilled records a fill.
func (r *Registry) OrderFilled() {
	if r == nil {
		return
	}
	r.ordersFilled.Inc()
}

// OrderDiscarded records an order discarded unfilled.
func (r *Registry) OrderDiscarded() {
	if r == nil {
		return
	}
	r.ordersDiscarded.Inc()
}

// TradeCompleted records a completed trade by exit reason.
func (r *Registry) TradeCompleted(reason string) {
	if r == nil {
		return
	}
	r.tradesCompleted.WithLabelValues(reason).Inc()
}

// SignalRejected records a signal rejected at ingestion.
func (r *Registry) SignalRejected() {
	if r == nil {
		return
	}
	r.signalsRejected.Inc()
}

// RunFinished records a run outcome and its duration.
func (r *Registry) RunFinished(status string, seconds float64) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(seconds)
}
