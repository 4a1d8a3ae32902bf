package observability

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// LatencyRecorder accumulates latency observations in memory and computes
// summary statistics over them. Intended for demos, load tests, and
// shutdown reports; Prometheus covers continuous monitoring.
type LatencyRecorder struct {
	mu      sync.Mutex
	samples []float64
}

// NewLatencyRecorder creates an empty recorder.
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{}
}

// Observe records one latency sample in milliseconds.
func (r *LatencyRecorder) Observe(latencyMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, latencyMs)
}

// Count returns the number of recorded samples.
func (r *LatencyRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Reset discards all samples.
func (r *LatencyRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}

// LatencySummary describes the distribution of recorded latencies, all
// values in milliseconds.
type LatencySummary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	P50    float64
	P90    float64
	P99    float64
}

// Summary computes the current summary. Returns an error when no samples
// have been recorded.
func (r *LatencyRecorder) Summary() (*LatencySummary, error) {
	r.mu.Lock()
	sorted := make([]float64, len(r.samples))
	copy(sorted, r.samples)
	r.mu.Unlock()

	if len(sorted) == 0 {
		return nil, fmt.Errorf("no latency samples recorded")
	}
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	summary := &LatencySummary{
		Count:  len(sorted),
		Mean:   mean,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P50:    stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.90, stat.Empirical, sorted, nil),
		P99:    stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
	// MeanStdDev returns NaN stddev for a single sample.
	if len(sorted) > 1 {
		summary.StdDev = std
	}
	return summary, nil
}

// LogSummary writes the current summary to the logger and resets the
// recorder. Meant for shutdown reports and the end of load-test runs.
// With no samples recorded it logs a debug line and does nothing else.
func (r *LatencyRecorder) LogSummary(logger *slog.Logger) {
	summary, err := r.Summary()
	if err != nil {
		logger.Debug("no latency samples recorded")
		return
	}
	r.Reset()
	logger.Info("request latency summary",
		"count", summary.Count,
		"mean_ms", summary.Mean,
		"stddev_ms", summary.StdDev,
		"p50_ms", summary.P50,
		"p90_ms", summary.P90,
		"p99_ms", summary.P99,
		"max_ms", summary.Max,
	)
}

// String renders the summary on one line.
func (s *LatencySummary) String() string {
	return fmt.Sprintf("n=%d mean=%.2fms stddev=%.2fms min=%.2fms p50=%.2fms p90=%.2fms p99=%.2fms max=%.2fms",
		s.Count, s.Mean, s.StdDev, s.Min, s.P50, s.P90, s.P99, s.Max)
}
