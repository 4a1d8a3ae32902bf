package observability

import (
	"context"
	"log/slog"
	"testing"
)

func TestLatencyRecorderSummary(t *testing.T) {
	recorder := NewLatencyRecorder()
	for _, v := range []float64{10, 20, 30, 40, 50} {
		recorder.Observe(v)
	}

	summary, err := recorder.Summary()
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Count != 5 {
		t.Errorf("Count = %d, want 5", summary.Count)
	}
	if summary.Mean != 30 {
		t.Errorf("Mean = %v, want 30", summary.Mean)
	}
	if summary.Min != 10 || summary.Max != 50 {
		t.Errorf("Min/Max = %v/%v", summary.Min, summary.Max)
	}
	if summary.P50 != 30 {
		t.Errorf("P50 = %v, want 30", summary.P50)
	}
	if summary.StdDev <= 0 {
		t.Errorf("StdDev = %v, want positive", summary.StdDev)
	}
}

func TestLatencyRecorderEmpty(t *testing.T) {
	recorder := NewLatencyRecorder()
	if _, err := recorder.Summary(); err == nil {
		t.Error("expected error for empty recorder")
	}
}

func TestLatencyRecorderSingleSample(t *testing.T) {
	recorder := NewLatencyRecorder()
	recorder.Observe(12.5)

	summary, err := recorder.Summary()
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.StdDev != 0 {
		t.Errorf("StdDev = %v, want 0 for a single sample", summary.StdDev)
	}
	if summary.Mean != 12.5 {
		t.Errorf("Mean = %v", summary.Mean)
	}
}

func TestLatencyRecorderReset(t *testing.T) {
	recorder := NewLatencyRecorder()
	recorder.Observe(1)
	recorder.Reset()
	if recorder.Count() != 0 {
		t.Errorf("Count() = %d after reset", recorder.Count())
	}
}

func TestLatencyRecorderLogSummary(t *testing.T) {
	handler := &countingHandler{}
	logger := slog.New(handler)

	recorder := NewLatencyRecorder()

	// Empty recorder: no info line, nothing to reset.
	recorder.LogSummary(logger)
	if handler.infos != 0 {
		t.Errorf("empty recorder logged %d info records", handler.infos)
	}

	recorder.Observe(5)
	recorder.Observe(15)
	recorder.LogSummary(logger)

	if handler.infos != 1 {
		t.Errorf("logged %d info records, want 1", handler.infos)
	}
	// Logging the summary drains the sample buffer.
	if recorder.Count() != 0 {
		t.Errorf("Count() = %d after LogSummary, want 0", recorder.Count())
	}
}

type countingHandler struct {
	infos int
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelInfo {
		h.infos++
	}
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func TestTraceContextHandlerPassesThrough(t *testing.T) {
	// Without an active span, records pass through unchanged.
	base := slog.NewTextHandler(discardWriter{}, nil)
	handler := NewTraceContextHandler(base)

	if !handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("handler should be enabled at info level")
	}

	logger := slog.New(handler)
	logger.Info("hello", "key", "value")
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
