package telemetry

import (
	"context"
	"log/slog"
	"sync"
)

// Exporter receives batches of finished, sanitized, immutable span records.
// The wire format and backend are the exporter's concern; the registry only
// guarantees that nothing unsanitized crosses this boundary.
type Exporter interface {
	ExportSpans(ctx context.Context, batch []SpanRecord) error
}

// MemoryExporter keeps exported records in memory for tests and local runs.
type MemoryExporter struct {
	mu      sync.Mutex
	records []SpanRecord
}

func NewMemoryExporter() *MemoryExporter {
	return &MemoryExporter{}
}

func (e *MemoryExporter) ExportSpans(_ context.Context, batch []SpanRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, batch...)
	return nil
}

// Records returns a copy of everything exported so far.
func (e *MemoryExporter) Records() []SpanRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SpanRecord, len(e.records))
	copy(out, e.records)
	return out
}

// LoggingExporter writes span records to a structured logger. It is the
// default sink when no collector is configured; the records it receives are
// already sanitized, so it may log them verbatim.
type LoggingExporter struct {
	logger *slog.Logger
}

func NewLoggingExporter(logger *slog.Logger) *LoggingExporter {
	return &LoggingExporter{logger: logger}
}

func (e *LoggingExporter) ExportSpans(ctx context.Context, batch []SpanRecord) error {
	for _, rec := range batch {
		args := []any{
			slog.String("trace_id", rec.TraceID),
			slog.String("span_id", rec.SpanID),
			slog.String("kind", rec.Kind.String()),
			slog.String("status", rec.Status.String()),
			slog.Duration("duration", rec.EndTime.Sub(rec.StartTime)),
		}
		for _, attr := range rec.Attributes {
			args = append(args, slog.Any(attr.Key, attr.Value))
		}
		e.logger.InfoContext(ctx, "span "+rec.Name, args...)
	}
	return nil
}
