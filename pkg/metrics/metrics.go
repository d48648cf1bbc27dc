// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskpilot"

// Metrics groups the collectors of one process. A nil *Metrics records
// nothing, so components accept it as optional.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	activeRuns    prometheus.Gauge
	steps         *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	blocked       prometheus.Counter
	frames        prometheus.Counter
	branches      *prometheus.CounterVec
	clients       prometheus.Gauge
	evictions     prometheus.Counter
	rateLimited   prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Runs started, by mode (single or compare).",
		}, []string{"mode"}),
		runsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Runs finished, by outcome (ok or error).",
		}, []string{"outcome"}),
		activeRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently executing.",
		}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps, by action and outcome.",
		}, []string{"action", "outcome"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time, by action.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"action"}),
		blocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_blocks_total",
			Help:      "Actions refused by the safety gate.",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Screenshot frames published.",
		}),
		branches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compare_branches_total",
			Help:      "Comparison branches finished, by target and outcome.",
		}, []string{"target", "outcome"}),
		clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket observers.",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_evictions_total",
			Help:      "Observers dropped after a failed or blocked send.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rate_limited_total",
			Help:      "Inbound task commands rejected by the rate limiter.",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted records a run start in mode.
func (m *Metrics) RunStarted(mode string) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
	m.activeRuns.Inc()
}

// RunCompleted records a finished run.
func (m *Metrics) RunCompleted(err error) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(outcome(err)).Inc()
	m.activeRuns.Dec()
}

// StepFinished records one executed step.
func (m *Metrics) StepFinished(action string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(action, outcome(err)).Inc()
	m.stepDuration.WithLabelValues(action).Observe(d.Seconds())
}

// SafetyBlocked records a gate refusal.
func (m *Metrics) SafetyBlocked() {
	if m == nil {
		return
	}
	m.blocked.Inc()
}

// FramePublished records a published frame.
func (m *Metrics) FramePublished() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

// BranchFinished records a finished comparison branch.
func (m *Metrics) BranchFinished(target string, err error) {
	if m == nil {
		return
	}
	m.branches.WithLabelValues(target, outcome(err)).Inc()
}

// ClientConnected records a new observer connection.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

// ClientDisconnected records an observer leaving, evicted or not.
func (m *Metrics) ClientDisconnected(evicted bool) {
	if m == nil {
		return
	}
	m.clients.Dec()
	if evicted {
		m.evictions.Inc()
	}
}

// CommandRateLimited records a rejected inbound command.
func (m *Metrics) CommandRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
