package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal status of a span.
type Status int

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Kind mirrors the usual span-kind taxonomy.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindProducer:
		return "producer"
	case KindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// Attribute is one key/value pair on a span. Attribute order is preserved
// from the order of SetAttribute calls; a repeated key overwrites in place.
type Attribute struct {
	Key   string
	Value any
}

// SpanRecord is a finished, sanitized, immutable span. Only SpanRecords cross
// the export boundary; nothing unsanitized is ever visible to an exporter.
type SpanRecord struct {
	TraceID       string
	SpanID        string
	ParentID      string
	Name          string
	Kind          Kind
	Status        Status
	StatusMessage string
	StartTime     time.Time
	EndTime       time.Time
	Attributes    []Attribute
}

// Span accumulates attributes during its Active phase and materializes an
// immutable sanitized SpanRecord exactly once at End. State machine:
// Created -> Active -> Ended, with no transitions out of Ended.
type Span struct {
	registry *Registry

	traceID  string
	spanID   string
	parentID string
	name     string
	kind     Kind
	start    time.Time

	mu    sync.Mutex
	ended bool
	attrs []Attribute
}

// SetAttribute buffers an attribute while the span is Active. Calls after End
// are a no-op, which is what guarantees nothing bypasses sanitization.
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = value
			return
		}
	}
	s.attrs = append(s.attrs, Attribute{Key: key, Value: value})
}

// End is the terminal transition: every buffered attribute passes through the
// sanitizer exactly once, the record becomes immutable, and it is handed to
// the export buffer. A second End is a no-op.
func (s *Span) End(status Status) {
	s.endWithMessage(status, "")
}

// EndError ends the span with error status and the error text as the status
// message. The message itself is scanned for sensitive substrings.
func (s *Span) EndError(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.endWithMessage(StatusError, msg)
}

func (s *Span) endWithMessage(status Status, message string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	attrs := s.attrs
	s.attrs = nil
	s.mu.Unlock()

	s.registry.finish(s, status, message, attrs)
}

// newSpanID returns a compact hex identifier. UUIDs give us the entropy we
// need without pulling in a dedicated ID scheme.
func newSpanID() string {
	id := uuid.New()
	return id.String()
}

type spanContextKey struct{}

// SpanFromContext returns the active span stored in ctx, if any.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sp, ok := ctx.Value(spanContextKey{}).(*Span)
	return sp, ok
}

func contextWithSpan(ctx context.Context, sp *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, sp)
}
