package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

func TestOrderMetricsRecordOnManagerProvider(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mgr := &Manager{meterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))}

	om, err := mgr.OrderMetrics()
	require.NoError(t, err)
	om.Operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "create"),
		attribute.String("outcome", "ok"),
	))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, ordersMeterName, rm.ScopeMetrics[0].Scope.Name)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "orders.operations", m.Name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.EqualValues(t, 1, sum.DataPoints[0].Value)
	op, _ := sum.DataPoints[0].Attributes.Value("operation")
	assert.Equal(t, "create", op.AsString())
}

func TestOrderMetricsWithoutProviderIsNoop(t *testing.T) {
	om, err := (&Manager{}).OrderMetrics()
	require.NoError(t, err)
	require.NotNil(t, om.Operations)
	om.Operations.Add(context.Background(), 1)
}

func TestNewManagerHonoursToggles(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Observability: config.Observability{
		ServiceName:      "orderdesk",
		EnableTracing:    true,
		TraceExporter:    "none",
		TraceSampleRatio: 1,
		EnableMetrics:    true,
		MetricsExporter:  "carrier-pigeon",
		PrometheusPath:   "/metrics",
	}}

	mgr, err := NewManager(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.Equal(t, "/metrics", mgr.PrometheusPath())

	lc.RequireStart().RequireStop()
}
