package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable keyed registry backing the guard. Implementations must
// make Claim, Reclaim, and Complete atomic under concurrent callers: two
// writers observing "no record" and both proceeding is the bug class this
// interface exists to prevent. Stores return pkg/platform/sentinel facts;
// the guard translates them into coded errors.
type Store interface {
	// Claim inserts the record if and only if no record exists for its
	// RequestID. Returns true when this caller won the claim.
	Claim(ctx context.Context, record RequestRecord) (bool, error)

	// Get returns the record for the given request ID, or sentinel.ErrNotFound.
	Get(ctx context.Context, requestID uuid.UUID) (RequestRecord, error)

	// Reclaim atomically flips a Failed record back to Pending with a fresh
	// CreatedAt, clearing any result. Returns true when this caller won.
	Reclaim(ctx context.Context, requestID uuid.UUID, createdAt time.Time) (bool, error)

	// Complete transitions Pending -> Completed and persists the result
	// snapshot. Returns sentinel.ErrInvalidState if the record is not Pending.
	Complete(ctx context.Context, requestID uuid.UUID, result []byte, completedAt time.Time) error

	// Fail transitions Pending -> Failed without populating a result.
	// Returns sentinel.ErrInvalidState if the record is not Pending.
	Fail(ctx context.Context, requestID uuid.UUID) error

	// ListStalePending returns Pending records created before the cutoff so an
	// external reaper can reclaim abandoned claims. The store itself never
	// reaps.
	ListStalePending(ctx context.Context, olderThan time.Time) ([]RequestRecord, error)
}
