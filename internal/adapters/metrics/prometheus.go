package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Recorder implements ports.Metrics using Prometheus. Each Recorder owns its
// registry so tests and multiple instances do not collide.
type Recorder struct {
	reg *prometheus.Registry

	ticks       *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	failovers   *prometheus.CounterVec
	lastPrice   prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlebot_strategy_ticks_total",
				Help: "Strategy ticks by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlebot_decisions_total",
				Help: "Decision log rows by action",
			},
			[]string{"action"},
		),
		resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlebot_resolutions_total",
				Help: "Resolve and expire submissions by kind and result",
			},
			[]string{"kind", "result"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlebot_outcomes_total",
				Help: "Settled wagers of the account by outcome",
			},
			[]string{"outcome"},
		),
		failovers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlebot_rpc_failovers_total",
				Help: "Endpoint rotations of the ledger RPC client",
			},
			[]string{"to"},
		),
		lastPrice: f.NewGauge(prometheus.GaugeOpts{
			Name: "battlebot_oracle_price",
			Help: "Last oracle price observed",
		}),
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (r *Recorder) TickCompleted(strategy string, ok bool) {
	r.ticks.WithLabelValues(strategy, result(ok)).Inc()
}

func (r *Recorder) DecisionLogged(action domain.DecisionAction) {
	r.decisions.WithLabelValues(string(action)).Inc()
}

func (r *Recorder) ResolutionAttempted(kind string, ok bool) {
	r.resolutions.WithLabelValues(kind, result(ok)).Inc()
}

func (r *Recorder) PriceObserved(price float64) {
	r.lastPrice.Set(price)
}

func (r *Recorder) OutcomeRecorded(outcome domain.Outcome) {
	r.outcomes.WithLabelValues(string(outcome)).Inc()
}

// Failover matches the antelope.WithFailoverHook signature.
func (r *Recorder) Failover(_, to string) {
	r.failovers.WithLabelValues(to).Inc()
}

// Handler serves the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
