package telemetry

import (
	"context"
	"math"
	"time"
)

// MetricsBackend is the sink for numeric instruments. Implementations exist
// for OpenTelemetry (otelexport) and for in-memory capture in tests. Numeric
// instruments accept only validated numeric values computed from business
// data, so they need no masking pass, only range checks.
type MetricsBackend interface {
	IncrementCounter(ctx context.Context, name string, delta int64, labels map[string]string)
	RecordDuration(ctx context.Context, name string, d time.Duration, labels map[string]string)
	RecordValue(ctx context.Context, name string, value float64, labels map[string]string)
}

// Counter is a validated monotonic counter with a dotted metric name.
type Counter struct {
	registry *Registry
	name     string
}

// Add increments the counter. Non-positive deltas are rejected so a counter
// can never be walked backwards by a caller bug.
func (c *Counter) Add(ctx context.Context, delta int64, labels map[string]string) {
	if delta <= 0 || c.registry.metricsBackend == nil {
		return
	}
	c.registry.metricsBackend.IncrementCounter(ctx, c.name, delta, labels)
}

// Histogram records durations and values with a dotted metric name.
type Histogram struct {
	registry *Registry
	name     string
}

// RecordDuration records an operation duration. Negative durations are
// rejected; a clock wobble must not poison the distribution.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, labels map[string]string) {
	if d < 0 || h.registry.metricsBackend == nil {
		return
	}
	h.registry.metricsBackend.RecordDuration(ctx, h.name, d, labels)
}

// RecordValue records a point value such as an order total. NaN, infinities,
// and negative values are rejected.
func (h *Histogram) RecordValue(ctx context.Context, value float64, labels map[string]string) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) || h.registry.metricsBackend == nil {
		return
	}
	h.registry.metricsBackend.RecordValue(ctx, h.name, value, labels)
}

// Counter returns a named counter instrument.
func (r *Registry) Counter(name string) *Counter {
	return &Counter{registry: r, name: name}
}

// Histogram returns a named histogram instrument.
func (r *Registry) Histogram(name string) *Histogram {
	return &Histogram{registry: r, name: name}
}
