package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// TraceContextHandler is a slog.Handler that stamps records with the
// trace and span ids of the active span, correlating logs with traces.
type TraceContextHandler struct {
	handler slog.Handler
}

// NewTraceContextHandler wraps a handler with trace correlation.
func NewTraceContextHandler(handler slog.Handler) *TraceContextHandler {
	return &TraceContextHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *TraceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds trace context and delegates to the wrapped handler.
func (h *TraceContextHandler) Handle(ctx context.Context, record slog.Record) error {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", spanContext.TraceID().String()),
			slog.String("span_id", spanContext.SpanID().String()),
		)
	}
	return h.handler.Handle(ctx, record)
}

// WithAttrs returns a new handler with additional attributes.
func (h *TraceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the given group.
func (h *TraceContextHandler) WithGroup(name string) slog.Handler {
	return &TraceContextHandler{handler: h.handler.WithGroup(name)}
}

// ConfigureLogging installs the process-wide default logger.
//
// With structured=true, records go to stdout as JSON; otherwise as text.
// With traceContext=true, records carry trace/span ids when a span is
// active.
func ConfigureLogging(level slog.Level, structured, traceContext bool) {
	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	if traceContext {
		handler = NewTraceContextHandler(handler)
	}
	slog.SetDefault(slog.New(handler))
}

// LoggerWithTrace returns the default logger wrapped with trace
// correlation.
func LoggerWithTrace() *slog.Logger {
	return slog.New(NewTraceContextHandler(slog.Default().Handler()))
}
