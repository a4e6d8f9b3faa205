package idempotency

import (
	"time"

	"github.com/google/uuid"
)

// Status of a request record. Transitions only move forward:
// Pending -> Completed or Pending -> Failed. A Failed record may be
// re-claimed (flipped back to Pending) by a retry, because only successful
// completions are deduplicated.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RequestRecord is the durable registry entry for one client request ID.
// At most one record exists per RequestID; only the single winner of the
// atomic claim ever mutates it. CreatedAt is persisted so an external reaper
// can apply a staleness policy to abandoned Pending records; the core never
// deletes records.
type RequestRecord struct {
	RequestID   uuid.UUID
	CommandType string
	Status      Status
	Result      []byte
	CreatedAt   time.Time
	CompletedAt time.Time
}
