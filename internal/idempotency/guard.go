// Package idempotency provides a keyed registry mapping client-supplied
// request IDs to request status and result, with atomic "claim or return
// cached" semantics. It is what makes repeated submissions of a side-effecting
// command safe under client and network retries.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/MrLoydHD/eShop/pkg/errs"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decision is the tagged outcome of Begin. Duplicate detection is a returned
// value, never a thrown/panicked condition.
type Decision int

const (
	// Proceed: this caller won the claim and must run the business handler,
	// then call Complete or Fail.
	Proceed Decision = iota
	// Cached: the command already completed; Outcome.Result holds the stored
	// snapshot and the handler must not run again.
	Cached
)

// Outcome carries the Begin decision and, for Cached, the stored result.
type Outcome struct {
	Decision Decision
	Result   []byte
}

// Option configures a Guard.
type Option func(*Guard)

// WithWait sets the bounded wait for in-flight duplicates and the polling
// interval used while waiting.
func WithWait(total, poll time.Duration) Option {
	return func(g *Guard) {
		if total > 0 {
			g.wait = total
		}
		if poll > 0 {
			g.poll = poll
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Guard implements atomic claim-or-return-cached semantics over a Store.
//
// Duplicate policy: a caller that finds the request still Pending waits up to
// the configured bound (default 2s, polling every 50ms) for the in-flight
// execution to settle, then receives a conflict error. A caller arriving
// after completion receives the cached result. Failed records do not block
// retries: the retry atomically re-claims the record.
type Guard struct {
	store Store
	wait  time.Duration
	poll  time.Duration
	clock func() time.Time
}

func New(store Store, opts ...Option) *Guard {
	g := &Guard{
		store: store,
		wait:  2 * time.Second,
		poll:  50 * time.Millisecond,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin claims the request ID or returns the cached result. Under concurrent
// calls with the same ID exactly one caller receives Proceed. A nil request
// ID is rejected before any registry access.
func (g *Guard) Begin(ctx context.Context, requestID uuid.UUID, commandType string) (Outcome, error) {
	if requestID == uuid.Nil {
		return Outcome{}, errs.ErrRequestIDMissing
	}

	deadline := g.clock().Add(g.wait)
	for {
		claimed, err := g.store.Claim(ctx, RequestRecord{
			RequestID:   requestID,
			CommandType: commandType,
			Status:      StatusPending,
			CreatedAt:   g.clock(),
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("claim request %s: %w", requestID, err)
		}
		if claimed {
			return Outcome{Decision: Proceed}, nil
		}

		record, err := g.store.Get(ctx, requestID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Lost the claim to a writer that has since been reaped or
				// rolled back; try again.
				continue
			}
			return Outcome{}, fmt.Errorf("read request %s: %w", requestID, err)
		}

		switch record.Status {
		case StatusCompleted:
			return Outcome{Decision: Cached, Result: record.Result}, nil

		case StatusFailed:
			// Only successful completions are deduplicated; failures are
			// retryable. Exactly one retry wins the reclaim.
			won, err := g.store.Reclaim(ctx, requestID, g.clock())
			if err != nil {
				return Outcome{}, fmt.Errorf("reclaim request %s: %w", requestID, err)
			}
			if won {
				return Outcome{Decision: Proceed}, nil
			}
			// A concurrent retry won; fall through to wait on its execution.

		case StatusPending:
			// In flight elsewhere; bounded wait then conflict.
		}

		if !g.clock().Before(deadline) {
			return Outcome{}, errs.New(errs.CodeConflict, fmt.Sprintf("request %s is already in flight", requestID))
		}
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-time.After(g.poll):
		}
	}
}

// Complete transitions the record to Completed and persists the result
// snapshot. Only the holder of Proceed may call this.
func (g *Guard) Complete(ctx context.Context, requestID uuid.UUID, result any) error {
	snapshot, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("snapshot result for %s: %w", requestID, err)
	}
	if err := g.store.Complete(ctx, requestID, snapshot, g.clock()); err != nil {
		return fmt.Errorf("complete request %s: %w", requestID, err)
	}
	return nil
}

// Fail transitions the record to Failed. The request ID stays retryable.
func (g *Guard) Fail(ctx context.Context, requestID uuid.UUID) error {
	if err := g.store.Fail(ctx, requestID); err != nil {
		return fmt.Errorf("fail request %s: %w", requestID, err)
	}
	return nil
}
