// Package otelexport adapts the telemetry pipeline onto the OpenTelemetry
// APIs. The exporter re-materializes finished, already-sanitized span records
// as OTel spans with their original timestamps; the metrics collector maps
// the registry's instruments onto OTel instruments created on demand.
package otelexport

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrLoydHD/eShop/internal/telemetry"
)

// SpanExporter exports sanitized span records through an OpenTelemetry
// tracer. The tracer should come from the application's TracerProvider; the
// OTLP wiring behind it is the collector's concern.
type SpanExporter struct {
	tracer trace.Tracer
}

func NewSpanExporter(tracer trace.Tracer) *SpanExporter {
	return &SpanExporter{tracer: tracer}
}

// ExportSpans replays each record as an OTel span with explicit start and end
// timestamps. Records arrive sanitized and immutable, so attribute values can
// be forwarded verbatim.
func (e *SpanExporter) ExportSpans(ctx context.Context, batch []telemetry.SpanRecord) error {
	for _, rec := range batch {
		opts := []trace.SpanStartOption{
			trace.WithTimestamp(rec.StartTime),
			trace.WithSpanKind(spanKind(rec.Kind)),
			trace.WithAttributes(attributes(rec)...),
		}

		_, span := e.tracer.Start(ctx, rec.Name, opts...)
		setStatus(span, rec)
		span.End(trace.WithTimestamp(rec.EndTime))
	}
	return nil
}

func attributes(rec telemetry.SpanRecord) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(rec.Attributes)+2)
	attrs = append(attrs,
		attribute.String("pipeline.trace_id", rec.TraceID),
		attribute.String("pipeline.parent_id", rec.ParentID),
	)
	for _, a := range rec.Attributes {
		attrs = append(attrs, keyValue(a))
	}
	return attrs
}

func keyValue(a telemetry.Attribute) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	default:
		return attribute.String(a.Key, stringify(v))
	}
}

func setStatus(span trace.Span, rec telemetry.SpanRecord) {
	switch rec.Status {
	case telemetry.StatusOK:
		span.SetStatus(codes.Ok, "")
	case telemetry.StatusError:
		span.SetStatus(codes.Error, rec.StatusMessage)
	default:
		span.SetStatus(codes.Unset, "")
	}
}

func spanKind(k telemetry.Kind) trace.SpanKind {
	switch k {
	case telemetry.KindServer:
		return trace.SpanKindServer
	case telemetry.KindClient:
		return trace.SpanKindClient
	case telemetry.KindProducer:
		return trace.SpanKindProducer
	case telemetry.KindConsumer:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}

// Ensure SpanExporter implements telemetry.Exporter.
var _ telemetry.Exporter = (*SpanExporter)(nil)
