package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficlens/trafficlens/internal/telemetry"
)

func TestInit_DisabledReturnsNoopProvider(t *testing.T) {
	provider, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "trafficlens-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})
	require.NoError(t, err)

	// Instrument handles exist and work even when nothing is recorded.
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	// No SDK providers were built, so there is nothing to flush.
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestProvider_ShutdownToleratesZeroValue(t *testing.T) {
	var provider telemetry.Provider
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestTracer_ReturnsGlobalTracer(t *testing.T) {
	assert.NotNil(t, telemetry.Tracer("trafficlens-test"))
}

func TestMeter_ReturnsGlobalMeter(t *testing.T) {
	assert.NotNil(t, telemetry.Meter("trafficlens-test"))
}
