package observability

import (
	"bytes"
	"context"
	"testing"

	"multilateration-sim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{}, nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.TracingConfig{Enabled: true, ServiceName: "rdm-test", Exporter: "stdout", SampleRatio: 1}

	shutdown, err := initTracing(context.Background(), cfg, nil, &buf)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), config.TracingConfig{}, nil)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "multilateration.Solve")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, nil)
	assert.Contains(t, buf.String(), "multilateration.Solve")
	assert.Contains(t, buf.String(), "rdm-test")
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	assert.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestShutdownWithTimeoutToleratesNil(t *testing.T) {
	assert.NotPanics(t, func() {
		ShutdownWithTimeout(context.Background(), nil, nil)
	})
}
