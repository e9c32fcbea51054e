package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/config"
)

func TestNewWithoutEndpointDiscardsSpans(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	provider, err := New(context.Background(), config.Config{ServiceName: "aliexpress-dropshipping-api"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provider)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "noop")
	require.False(t, span.IsRecording())
	require.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestShutdownIsNilSafe(t *testing.T) {
	var provider *Provider
	require.NoError(t, provider.Shutdown(context.Background()))
	require.NoError(t, (&Provider{}).Shutdown(context.Background()))
}

func TestNewInstallsTraceContextPropagator(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, err := New(context.Background(), config.Config{}, nil)
	require.NoError(t, err)
	require.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	require.Contains(t, otel.GetTextMapPropagator().Fields(), "baggage")
}
