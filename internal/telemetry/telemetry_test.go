package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestProductionConfigValidates(t *testing.T) {
	assert.NoError(t, ProductionConfig().Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadSamplingRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.SamplingRate = 2.0
	assert.Error(t, cfg.Validate())
}

func TestNewLoggerWritesToStdout(t *testing.T) {
	l, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	l.Info("hello")
}

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	l, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	scoped := l.WithRunID("run-1")
	ctx := scoped.WithContext(context.Background())
	assert.Same(t, scoped, FromContext(ctx))
}

func TestFromContextFallsBackWithoutAttachedLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)
	m.RecordRunStarted("plan")
	m.RecordAction("crash", "succeeded", time.Millisecond)
	m.SetInstanceState("host1", "storaged", true)
	m.RecordSSHCall("host1", nil)
}

func TestEnabledMetricsRecordWithoutPanicking(t *testing.T) {
	cfg := MetricsConfig{Enabled: true, Namespace: "test", ListenAddress: ":0", Path: "/metrics"}
	m, err := NewMetrics(cfg)
	require.NoError(t, err)
	m.RecordRunStarted("plan")
	m.RecordAction("crash", "succeeded", 5*time.Millisecond)
	m.RecordActionRetry("crash")
	m.SetInstanceState("host1", "storaged", true)
	m.RecordSSHCall("host1", nil)
	m.RecordRunCompleted("succeeded", 10*time.Millisecond)
	assert.NotNil(t, m.Handler())
}

func TestTimerReportsElapsedDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.Greater(t, timer.Duration(), time.Duration(0))
}

func TestNewTracerDisabledIsNoOp(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false}, "chaosorch", "dev", "test")
	require.NoError(t, err)
	ctx, span := tr.StartRunSpan(context.Background(), "smoke")
	defer span.End()
	RecordSuccess(span)
	assert.NoError(t, tr.Shutdown(ctx))
}

func TestNewTracerStdoutExporter(t *testing.T) {
	tr, err := NewTracer(TracingConfig{
		Enabled:            true,
		Exporter:           "stdout",
		SamplingRate:       1.0,
		MaxExportBatchSize: 10,
		ExportTimeout:      time.Second,
	}, "chaosorch", "dev", "test")
	require.NoError(t, err)
	ctx, span := tr.StartActionSpan(context.Background(), "crash", "10.0.0.1")
	RecordError(span, assert.AnError)
	span.End()
	assert.NoError(t, tr.Shutdown(ctx))
}
