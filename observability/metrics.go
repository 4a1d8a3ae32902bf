package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var globalMeterProvider *sdkmetric.MeterProvider

// InitMetrics initializes OpenTelemetry metrics with a Prometheus reader
// and installs the provider globally.
func InitMetrics(serviceName string) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)
	globalMeterProvider = provider
	return provider, nil
}

// GetMeter returns a meter from the current global provider.
func GetMeter(name string) metric.Meter {
	return otel.Meter(name)
}

// MetricsMiddleware wraps an agent with request, error, and latency
// instruments.
type MetricsMiddleware struct {
	agent            scholarkit.Agent
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	recorder         *LatencyRecorder
}

// NewMetricsMiddleware creates a metrics wrapper. The optional recorder
// additionally accumulates latencies for summary statistics.
func NewMetricsMiddleware(agent scholarkit.Agent, recorder *LatencyRecorder) (*MetricsMiddleware, error) {
	meter := GetMeter("scholarkit.observability")

	requestCounter, err := meter.Int64Counter(
		"scholarkit.agent.requests",
		metric.WithDescription("Total number of agent requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"scholarkit.agent.errors",
		metric.WithDescription("Total number of agent errors"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create error counter: %w", err)
	}

	latencyHistogram, err := meter.Float64Histogram(
		"scholarkit.agent.latency",
		metric.WithDescription("Agent processing latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}

	return &MetricsMiddleware{
		agent:            agent,
		requestCounter:   requestCounter,
		errorCounter:     errorCounter,
		latencyHistogram: latencyHistogram,
		recorder:         recorder,
	}, nil
}

// Name returns the wrapped agent's name.
func (m *MetricsMiddleware) Name() string {
	return m.agent.Name()
}

// Capabilities returns the wrapped agent's capabilities.
func (m *MetricsMiddleware) Capabilities() []string {
	return m.agent.Capabilities()
}

// Process delegates to the wrapped agent, recording count, outcome, and
// latency.
func (m *MetricsMiddleware) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	start := time.Now()

	attrs := []attribute.KeyValue{
		attribute.String("agent.name", m.agent.Name()),
		attribute.String("message.role", message.Role),
	}

	response, err := m.agent.Process(ctx, message)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if m.recorder != nil {
		m.recorder.Observe(latencyMs)
	}

	if err != nil {
		errorAttrs := append(attrs, attribute.String("status", "error"))
		m.requestCounter.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
		m.latencyHistogram.Record(ctx, latencyMs, metric.WithAttributes(errorAttrs...))
		return nil, err
	}

	successAttrs := append(attrs, attribute.String("status", "success"))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(successAttrs...))
	m.latencyHistogram.Record(ctx, latencyMs, metric.WithAttributes(successAttrs...))
	return response, nil
}

// ShutdownMetrics flushes and stops the global meter provider.
func ShutdownMetrics(ctx context.Context) error {
	if globalMeterProvider != nil {
		return globalMeterProvider.Shutdown(ctx)
	}
	return nil
}

var _ scholarkit.Agent = (*MetricsMiddleware)(nil)
