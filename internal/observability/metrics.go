package observability

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

const ordersMeterName = "github.com/Additional-Code/orderdesk/orders"

// OrderMetrics holds the instruments the order service records into.
type OrderMetrics struct {
	// Operations counts order operations by operation and outcome.
	Operations metric.Int64Counter
}

// OrderMetrics registers the order instruments on the manager's meter
// provider, or on a no-op provider when metrics are disabled.
func (m *Manager) OrderMetrics() (OrderMetrics, error) {
	var meter metric.Meter
	if m.meterProvider != nil {
		meter = m.meterProvider.Meter(ordersMeterName)
	} else {
		meter = noop.NewMeterProvider().Meter(ordersMeterName)
	}

	ops, err := meter.Int64Counter("orders.operations",
		metric.WithDescription("Order operations grouped by operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return OrderMetrics{}, err
	}
	return OrderMetrics{Operations: ops}, nil
}

// newMeterProvider returns a nil provider for unknown exporters. The handler is
// only set for the prometheus exporter.
func newMeterProvider(obs config.Observability, res *sdkresource.Resource, logger *zap.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	switch obs.MetricsExporter {
	case "prometheus":
		exporter, err := promexporter.New(promexporter.WithRegisterer(prometheus.DefaultRegisterer))
		if err != nil {
			return nil, nil, err
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
		return mp, promhttp.Handler(), nil
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, nil, err
		}
		reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
		return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)), nil, nil
	default:
		logger.Warn("unsupported metrics exporter; metrics disabled", zap.String("exporter", obs.MetricsExporter))
		return nil, nil, nil
	}
}
