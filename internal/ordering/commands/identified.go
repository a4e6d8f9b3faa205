// Package commands provides the generic identified-command wrapper: any
// side-effecting command handler can be wrapped so that the business logic
// executes at most once per request ID that ever reaches Completed,
// regardless of how many times the wrapper itself is invoked.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/MrLoydHD/eShop/internal/idempotency"
	"github.com/MrLoydHD/eShop/pkg/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler is any business command handler.
type Handler[C any, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[C any, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// IdentifiedOption configures an IdentifiedHandler.
type IdentifiedOption[R any] func(*identifiedConfig[R])

type identifiedConfig[R any] struct {
	commandType     string
	duplicateResult func(snapshot []byte) (R, error)
}

// WithCommandType overrides the command type recorded with the claim. The
// default is the command's Go type name.
func WithCommandType[R any](name string) IdentifiedOption[R] {
	return func(c *identifiedConfig[R]) {
		if name != "" {
			c.commandType = name
		}
	}
}

// WithDuplicateResult sets the per-command hook defining the canonical value
// returned for duplicate submissions. The default decodes the stored snapshot
// back into R.
func WithDuplicateResult[R any](fn func(snapshot []byte) (R, error)) IdentifiedOption[R] {
	return func(c *identifiedConfig[R]) {
		if fn != nil {
			c.duplicateResult = fn
		}
	}
}

// IdentifiedHandler wraps a business handler with the idempotency guard.
type IdentifiedHandler[C any, R any] struct {
	inner           Handler[C, R]
	guard           *idempotency.Guard
	logger          *slog.Logger
	commandType     string
	duplicateResult func(snapshot []byte) (R, error)
}

func NewIdentified[C any, R any](guard *idempotency.Guard, inner Handler[C, R], logger *slog.Logger, opts ...IdentifiedOption[R]) *IdentifiedHandler[C, R] {
	cfg := identifiedConfig[R]{
		commandType: commandTypeName[C](),
		duplicateResult: func(snapshot []byte) (R, error) {
			var result R
			if len(snapshot) == 0 {
				return result, nil
			}
			if err := json.Unmarshal(snapshot, &result); err != nil {
				return result, errs.Wrap(errs.CodeInternal, "decode cached result", err)
			}
			return result, nil
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &IdentifiedHandler[C, R]{
		inner:           inner,
		guard:           guard,
		logger:          logger,
		commandType:     cfg.commandType,
		duplicateResult: cfg.duplicateResult,
	}
}

// Handle consults the guard before delegating. On Proceed it runs the inner
// handler and completes (or fails) the record; on Cached it returns the
// canonical duplicate result without invoking the handler.
func (h *IdentifiedHandler[C, R]) Handle(ctx context.Context, cmd C, requestID uuid.UUID) (R, error) {
	var zero R

	outcome, err := h.guard.Begin(ctx, requestID, h.commandType)
	if err != nil {
		return zero, err
	}

	if outcome.Decision == idempotency.Cached {
		h.logger.InfoContext(ctx, "duplicate request, returning cached result",
			"command", h.commandType,
			"request_id", requestID.String(),
		)
		return h.duplicateResult(outcome.Result)
	}

	result, err := h.inner.Handle(ctx, cmd)
	if err != nil {
		// A cancelled command leaves the record Pending so a retry can claim
		// it once an external staleness policy reclaims the lease. Everything
		// else marks the record Failed, which keeps the ID retryable.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			if failErr := h.guard.Fail(ctx, requestID); failErr != nil {
				h.logger.ErrorContext(ctx, "failed to mark request failed",
					"command", h.commandType,
					"request_id", requestID.String(),
					"error", failErr,
				)
			}
		}
		var coded *errs.Error
		if errors.As(err, &coded) {
			return zero, err
		}
		return zero, errs.Wrap(errs.CodeExecution, h.commandType+" failed", err)
	}

	if err := h.guard.Complete(ctx, requestID, result); err != nil {
		// The side effect happened; surfacing an error here would invite a
		// retry that the guard would then execute again. Log loudly and
		// return the result.
		h.logger.ErrorContext(ctx, "failed to persist completion",
			"command", h.commandType,
			"request_id", requestID.String(),
			"error", err,
		)
	}
	return result, nil
}

// CommandType reports the type name recorded with claims.
func (h *IdentifiedHandler[C, R]) CommandType() string {
	return h.commandType
}

func commandTypeName[C any]() string {
	t := reflect.TypeOf((*C)(nil)).Elem()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
