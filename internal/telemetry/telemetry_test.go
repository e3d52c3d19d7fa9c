package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

// restoreGlobals keeps tests from leaking otel globals.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestInit_Disabled(t *testing.T) {
	restoreGlobals(t)

	p, err := Init(context.Background(), config.TelemetryConfig{}, "v1.0.0", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, p.tp)
	assert.Nil(t, p.mp)
	assert.NoError(t, p.Shutdown(context.Background()))

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
}

func TestInit_Enabled(t *testing.T) {
	restoreGlobals(t)

	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true
	cfg.ServiceName = "sunyadvisor-test"

	// the gRPC exporters dial lazily, so no collector is needed
	p, err := Init(context.Background(), cfg, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p.tp)
	require.NotNil(t, p.mp)

	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tpIsSDK)
	assert.True(t, mpIsSDK)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() { _ = p.Shutdown(ctx) })
}

func TestProviders_ShutdownNil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestBuildVersion(t *testing.T) {
	// test binaries report (devel)
	assert.Equal(t, "dev", buildVersion())
}
