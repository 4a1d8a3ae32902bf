// Package observability provides OpenTelemetry tracing and metrics for
// scholarkit agents, plus latency summaries for offline analysis.
package observability

import (
	"context"
	"fmt"

	"github.com/scholarkit/scholarkit-go/scholarkit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

var globalTracerProvider *sdktrace.TracerProvider

// InitTracing initializes OpenTelemetry tracing.
//
// An OTLP gRPC exporter is attached when otlpEndpoint is non-empty; a
// pretty-printed console exporter when consoleExport is true. The provider
// is installed globally with W3C trace-context propagation.
func InitTracing(serviceName, otlpEndpoint string, consoleExport bool) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	if otlpEndpoint != "" {
		exporter, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpoint(otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		tp.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}

	if consoleExport {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create console exporter: %w", err)
		}
		tp.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracerProvider = tp
	return tp, nil
}

// GetTracer returns a tracer from the current global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// TracingMiddleware wraps an agent so every Process call runs in a span.
type TracingMiddleware struct {
	agent    scholarkit.Agent
	spanName string
	tracer   trace.Tracer
}

// NewTracingMiddleware creates a tracing wrapper. An empty spanName
// defaults to "agent.<name>.process".
func NewTracingMiddleware(agent scholarkit.Agent, spanName string) *TracingMiddleware {
	if spanName == "" {
		spanName = fmt.Sprintf("agent.%s.process", agent.Name())
	}
	return &TracingMiddleware{
		agent:    agent,
		spanName: spanName,
		tracer:   GetTracer("scholarkit.observability"),
	}
}

// Name returns the wrapped agent's name.
func (t *TracingMiddleware) Name() string {
	return t.agent.Name()
}

// Capabilities returns the wrapped agent's capabilities.
func (t *TracingMiddleware) Capabilities() []string {
	return t.agent.Capabilities()
}

// Process delegates to the wrapped agent inside a span carrying message
// and outcome attributes.
func (t *TracingMiddleware) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	ctx, span := t.tracer.Start(ctx, t.spanName, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(
		attribute.String("agent.name", t.agent.Name()),
		attribute.String("message.role", message.Role),
		attribute.Int("message.content_length", len(message.Content)),
	)

	response, err := t.agent.Process(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.Int("response.content_length", len(response.Content)))
	return response, nil
}

// Shutdown flushes and stops the global tracer provider.
func Shutdown(ctx context.Context) error {
	if globalTracerProvider != nil {
		return globalTracerProvider.Shutdown(ctx)
	}
	return nil
}

var _ scholarkit.Agent = (*TracingMiddleware)(nil)
