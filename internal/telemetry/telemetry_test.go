package telemetry_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"libradesk/internal/telemetry"
)

func TestSetup_None(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{ServiceName: "test", Exporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_Stdout(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName: "test",
		Environment: "development",
		Exporter:    "stdout",
	})
	require.NoError(t, err)

	_, span := otel.Tracer("libradesk/telemetry_test").Start(context.Background(), "probe")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := telemetry.Setup(context.Background(), telemetry.Config{ServiceName: "test", Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf, "warn")

	logger.Info("dropped")
	logger.Warn("kept", "kind", "membership")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"kind":"membership"`)
}
