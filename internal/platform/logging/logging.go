// Package logging builds the process logger. Every attribute on every log
// record is routed through the masking sanitizer before it is handed to the
// underlying handler, so structured logs cannot carry sensitive values across
// the process boundary even when a call site logs them directly.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/MrLoydHD/eShop/internal/masking"
)

// New returns a JSON logger writing to stdout with sanitization in front.
func New(level slog.Level, sanitizer *masking.Sanitizer) *slog.Logger {
	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(NewSanitizingHandler(inner, sanitizer))
}

// SanitizingHandler wraps any slog.Handler and masks attributes before
// delegating. Group structure is preserved; only leaf values are rewritten.
type SanitizingHandler struct {
	inner     slog.Handler
	sanitizer *masking.Sanitizer
}

func NewSanitizingHandler(inner slog.Handler, sanitizer *masking.Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{inner: inner, sanitizer: sanitizer}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.sanitizer.ScanAndMask(record.Message), record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(h.sanitizeAttr(attr))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clean[i] = h.sanitizeAttr(attr)
	}
	return &SanitizingHandler{inner: h.inner.WithAttrs(clean), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{inner: h.inner.WithGroup(name), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) sanitizeAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, member := range group {
			clean[i] = h.sanitizeAttr(member)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(clean...)}
	}

	if h.sanitizer.Policy().IsSensitiveField(attr.Key) {
		return slog.String(attr.Key, masking.FullMask)
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, h.sanitizer.ScanAndMask(attr.Value.String()))
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			return slog.String(attr.Key, h.sanitizer.ScanAndMask(err.Error()))
		}
		return slog.Any(attr.Key, h.sanitizer.SanitizeStructured(attr.Value.Any()))
	default:
		// Numeric, bool, time, and duration values carry no free text.
		return attr
	}
}
