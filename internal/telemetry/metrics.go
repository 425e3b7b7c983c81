package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one orchestrator process. A
// disabled Metrics (config.Enabled == false) has nil collectors and every
// Record/Set method becomes a no-op, so callers never need to branch on
// whether metrics are on.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	actionsExecuted *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	actionRetries   *prometheus.CounterVec

	instanceState *prometheus.GaugeVec

	sshCalls *prometheus.CounterVec
	sshErrs  *prometheus.CounterVec

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics builds a Metrics collector registered under its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	ns := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "runs_started_total", Help: "Total chaos runs started",
		}, []string{"plan"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "runs_completed_total", Help: "Total chaos runs completed",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "run_duration_seconds", Help: "Run wall-clock duration", Buckets: buckets,
		}, []string{"status"}),
		actionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "actions_executed_total", Help: "Total actions executed",
		}, []string{"action", "status"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "action_duration_seconds", Help: "Action execution duration", Buckets: buckets,
		}, []string{"action"}),
		actionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "action_retries_total", Help: "Total action retry attempts",
		}, []string{"action"}),
		instanceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "instance_state", Help: "1 if the instance is running, else 0",
		}, []string{"host", "type"}),
		sshCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "ssh_calls_total", Help: "Total remote command executions",
		}, []string{"host"}),
		sshErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "ssh_errors_total", Help: "Total remote command execution errors",
		}, []string{"host"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "active_runs", Help: "Current number of active runs",
		}),
	}

	registry.MustRegister(
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.actionsExecuted, m.actionDuration, m.actionRetries,
		m.instanceState, m.sshCalls, m.sshErrs, m.activeRuns,
	)
	return m, nil
}

// RecordRunStarted marks the start of a plan run.
func (m *Metrics) RecordRunStarted(plan string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(plan).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted marks a plan run finished with status ("succeeded",
// "failed").
func (m *Metrics) RecordRunCompleted(status string, d time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
	m.activeRuns.Dec()
}

// RecordAction records one action's terminal status and duration.
func (m *Metrics) RecordAction(action, status string, d time.Duration) {
	if m.actionsExecuted == nil {
		return
	}
	m.actionsExecuted.WithLabelValues(action, status).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordActionRetry records one retry attempt of an action.
func (m *Metrics) RecordActionRetry(action string) {
	if m.actionRetries == nil {
		return
	}
	m.actionRetries.WithLabelValues(action).Inc()
}

// SetInstanceState records whether an instance is currently running.
func (m *Metrics) SetInstanceState(host, instanceType string, running bool) {
	if m.instanceState == nil {
		return
	}
	v := 0.0
	if running {
		v = 1.0
	}
	m.instanceState.WithLabelValues(host, instanceType).Set(v)
}

// RecordSSHCall records one remote command execution against host, and an
// error against it if err is non-nil.
func (m *Metrics) RecordSSHCall(host string, err error) {
	if m.sshCalls == nil {
		return
	}
	m.sshCalls.WithLabelValues(host).Inc()
	if err != nil {
		m.sshErrs.WithLabelValues(host).Inc()
	}
}

// Handler returns the HTTP handler serving this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Timer measures elapsed wall-clock time for an in-flight operation.
type Timer struct{ start time.Time }

// NewTimer starts a Timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration { return time.Since(t.start) }
