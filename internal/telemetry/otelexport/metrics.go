package otelexport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrLoydHD/eShop/internal/telemetry"
)

// MetricsCollector implements telemetry.MetricsBackend using the
// OpenTelemetry metrics API. Instruments are created on demand per metric
// name and cached:
//   - IncrementCounter -> Counter
//   - RecordDuration   -> Float64 histogram in seconds (OTel convention)
//   - RecordValue      -> Float64 histogram
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (m *MetricsCollector) IncrementCounter(ctx context.Context, name string, delta int64, labels map[string]string) {
	counter := m.getOrCreateCounter(name)
	if counter == nil {
		return
	}
	counter.Add(ctx, delta, metric.WithAttributes(otelAttrs(labels)...))
}

func (m *MetricsCollector) RecordDuration(ctx context.Context, name string, d time.Duration, labels map[string]string) {
	m.record(ctx, name, d.Seconds(), labels)
}

func (m *MetricsCollector) RecordValue(ctx context.Context, name string, value float64, labels map[string]string) {
	m.record(ctx, name, value, labels)
}

func (m *MetricsCollector) record(ctx context.Context, name string, value float64, labels map[string]string) {
	histogram := m.getOrCreateHistogram(name)
	if histogram == nil {
		return
	}
	histogram.Record(ctx, value, metric.WithAttributes(otelAttrs(labels)...))
}

func (m *MetricsCollector) getOrCreateCounter(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[name]; ok {
		return counter
	}
	counter, err := m.meter.Int64Counter(name)
	if err != nil {
		return nil
	}
	m.counters[name] = counter
	return counter
}

func (m *MetricsCollector) getOrCreateHistogram(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if histogram, ok := m.histograms[name]; ok {
		return histogram
	}
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return nil
	}
	m.histograms[name] = histogram
	return histogram
}

func otelAttrs(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}
	return attrs
}

func stringify(v any) string {
	return fmt.Sprint(v)
}

// Ensure MetricsCollector implements telemetry.MetricsBackend.
var _ telemetry.MetricsBackend = (*MetricsCollector)(nil)
