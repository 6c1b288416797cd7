// Package telemetry holds the process-wide Prometheus registry every other
// component records into: reconciliation timing, execution-gate decisions,
// and scaling-policy decisions.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds every metric this process exposes.
type Registry struct {
	ReconcileDuration *prometheus.HistogramVec
	ReconcileFills    *prometheus.CounterVec
	GateDecisions     *prometheus.CounterVec
	ScalingDecisions  *prometheus.CounterVec
}

// NewRegistry constructs and registers every metric with the default
// Prometheus registerer.
func NewRegistry() *Registry {
	r := &Registry{
		ReconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controlplane_reconcile_duration_seconds",
				Help:    "Duration of a reconciliation cycle in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"scope", "result"},
		),
		ReconcileFills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlplane_reconcile_fills_total",
				Help: "Total number of broker fills reconciled",
			},
			[]string{"scope", "symbol"},
		),
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlplane_gate_decisions_total",
				Help: "Total number of execution-gate decisions by outcome",
			},
			[]string{"scope", "decision"},
		),
		ScalingDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlplane_scaling_decisions_total",
				Help: "Total number of scaling-policy decisions by outcome and reason",
			},
			[]string{"scope", "decision", "reason_code"},
		),
	}

	prometheus.MustRegister(
		r.ReconcileDuration,
		r.ReconcileFills,
		r.GateDecisions,
		r.ScalingDecisions,
	)

	return r
}

// ReconcileTimer tracks the duration of one reconciliation cycle.
type ReconcileTimer struct {
	registry *Registry
	scope    string
	start    time.Time
}

// StartReconcileTimer begins timing a reconciliation cycle for scope.
func (r *Registry) StartReconcileTimer(scope string) *ReconcileTimer {
	return &ReconcileTimer{registry: r, scope: scope, start: time.Now()}
}

// Stop records the elapsed duration under result ("ok" or "error").
func (t *ReconcileTimer) Stop(result string) {
	duration := time.Since(t.start)
	t.registry.ReconcileDuration.WithLabelValues(t.scope, result).Observe(duration.Seconds())
	log.Debug().
		Str("scope", t.scope).
		Str("result", result).
		Dur("duration", duration).
		Msg("telemetry: reconcile cycle completed")
}

// RecordFill increments the fill counter for scope/symbol.
func (r *Registry) RecordFill(scope, symbol string) {
	r.ReconcileFills.WithLabelValues(scope, symbol).Inc()
}

// RecordGateDecision increments the gate-decision counter.
func (r *Registry) RecordGateDecision(scope, decision string) {
	r.GateDecisions.WithLabelValues(scope, decision).Inc()
}

// RecordScalingDecision increments the scaling-decision counter.
func (r *Registry) RecordScalingDecision(scope, decision, reasonCode string) {
	r.ScalingDecisions.WithLabelValues(scope, decision, reasonCode).Inc()
}

// Handler returns the standard promhttp exposition handler for GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
