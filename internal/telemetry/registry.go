// Package telemetry is the process-wide telemetry emitter. A Registry is
// constructed explicitly at startup and passed by dependency injection; there
// are no package-level singletons, so tests instantiate isolated instances
// and tear them down with Flush/Close.
//
// Every span attribute is routed through the sanitizer when the span ends,
// before the record becomes visible to any exporter. Export is decoupled from
// request handling through a bounded drop-oldest buffer and a background
// flush worker: request threads only enqueue immutable finished records.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrLoydHD/eShop/internal/masking"
)

// Config carries the registry's construction-time dependencies and knobs.
type Config struct {
	Sanitizer      *masking.Sanitizer
	Exporter       Exporter
	MetricsBackend MetricsBackend
	Pipeline       *PipelineMetrics
	Logger         *slog.Logger

	// BufferCapacity bounds the export buffer; oldest records are dropped
	// when it is full. BatchSize and FlushInterval shape the background
	// export loop.
	BufferCapacity int
	BatchSize      int
	FlushInterval  time.Duration
}

// Registry creates spans, routes their attributes through the sanitizer, and
// feeds finished records to the export pipeline. Safe for arbitrary
// concurrent callers.
type Registry struct {
	sanitizer      *masking.Sanitizer
	exporter       Exporter
	metricsBackend MetricsBackend
	pipeline       *PipelineMetrics
	logger         *slog.Logger

	buffer        *ringBuffer
	batchSize     int
	flushInterval time.Duration
}

func New(cfg Config) (*Registry, error) {
	if cfg.Sanitizer == nil {
		return nil, fmt.Errorf("telemetry registry requires a sanitizer")
	}
	if cfg.Exporter == nil {
		return nil, fmt.Errorf("telemetry registry requires an exporter")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sanitizer:      cfg.Sanitizer,
		exporter:       cfg.Exporter,
		metricsBackend: cfg.MetricsBackend,
		pipeline:       cfg.Pipeline,
		logger:         logger,
		buffer:         newRingBuffer(cfg.BufferCapacity),
		batchSize:      batchSize,
		flushInterval:  flushInterval,
	}, nil
}

// StartSpan creates a span in the Active state. The parent link is taken from
// ctx if a span is already active there; the returned context carries the new
// span for child operations.
func (r *Registry) StartSpan(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	sp := &Span{
		registry: r,
		spanID:   newSpanID(),
		name:     name,
		kind:     kind,
		start:    time.Now(),
	}
	if parent, ok := SpanFromContext(ctx); ok {
		sp.traceID = parent.traceID
		sp.parentID = parent.spanID
	} else {
		sp.traceID = newSpanID()
	}
	return contextWithSpan(ctx, sp), sp
}

// finish sanitizes the span's attributes exactly once and enqueues the
// resulting immutable record. A span whose sanitization fails for any reason
// is replaced wholesale with a generic redacted record rather than exported
// partially.
func (r *Registry) finish(sp *Span, status Status, message string, attrs []Attribute) {
	rec := SpanRecord{
		TraceID:       sp.traceID,
		SpanID:        sp.spanID,
		ParentID:      sp.parentID,
		Name:          sp.name,
		Kind:          sp.kind,
		Status:        status,
		StatusMessage: r.sanitizeMessage(message),
		StartTime:     sp.start,
		EndTime:       time.Now(),
	}

	clean, ok := r.sanitizeAttributes(attrs)
	if !ok {
		if r.pipeline != nil {
			r.pipeline.SanitizerFailures.Inc()
		}
		r.logger.Warn("span replaced by redacted record", "span", sp.name)
		rec.Attributes = []Attribute{{Key: "telemetry.redacted", Value: true}}
		rec.StatusMessage = masking.SanitizedContent
	} else {
		rec.Attributes = clean
	}

	droppedBefore := r.buffer.Dropped()
	r.buffer.Enqueue(rec)
	if r.pipeline != nil {
		r.pipeline.SpansEnded.Inc()
		if d := r.buffer.Dropped() - droppedBefore; d > 0 {
			r.pipeline.SpansDropped.Add(float64(d))
		}
	}
}

func (r *Registry) sanitizeAttributes(attrs []Attribute) (clean []Attribute, ok bool) {
	defer func() {
		if recover() != nil {
			clean, ok = nil, false
		}
	}()
	clean = make([]Attribute, len(attrs))
	for i, attr := range attrs {
		clean[i] = Attribute{Key: attr.Key, Value: r.sanitizer.Attribute(attr.Key, attr.Value)}
	}
	return clean, true
}

func (r *Registry) sanitizeMessage(message string) string {
	if message == "" {
		return ""
	}
	return r.sanitizer.ScanAndMask(message)
}

// Run is the background flush loop. It exports batches until ctx is
// cancelled, then drains what is left. Intended to run under an errgroup next
// to the HTTP server.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.Flush(drainCtx)
			return ctx.Err()
		case <-ticker.C:
			r.exportOnce(ctx)
		}
	}
}

// Flush synchronously drains the export buffer. Used at shutdown and by
// tests that assert on exported records.
func (r *Registry) Flush(ctx context.Context) error {
	for r.buffer.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.exportOnce(ctx)
	}
	return nil
}

func (r *Registry) exportOnce(ctx context.Context) {
	batch := r.buffer.DequeueBatch(r.batchSize)
	if len(batch) == 0 {
		return
	}
	if err := r.exporter.ExportSpans(ctx, batch); err != nil {
		// Telemetry never fails the business path; log and count.
		if r.pipeline != nil {
			r.pipeline.ExportFailures.Inc()
		}
		r.logger.Error("span export failed", "error", err, "batch_size", len(batch))
		return
	}
	if r.pipeline != nil {
		r.pipeline.SpansExported.Add(float64(len(batch)))
	}
}

// BufferedSpans reports the current depth of the export buffer.
func (r *Registry) BufferedSpans() int {
	return r.buffer.Len()
}

// DroppedSpans reports how many spans were dropped by the full buffer.
func (r *Registry) DroppedSpans() int64 {
	return r.buffer.Dropped()
}
