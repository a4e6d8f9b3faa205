// Package memory provides the in-memory request registry used in tests and
// single-process runs. Durability-requiring deployments use the postgres or
// redis stores instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrLoydHD/eShop/internal/idempotency"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
)

// Store implements idempotency.Store with a mutex-guarded map. All
// transitions run under the lock, so claim/reclaim/complete are atomic.
type Store struct {
	mu      sync.Mutex
	records map[uuid.UUID]idempotency.RequestRecord
}

func New() *Store {
	return &Store{records: make(map[uuid.UUID]idempotency.RequestRecord)}
}

func (s *Store) Claim(_ context.Context, record idempotency.RequestRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.RequestID]; exists {
		return false, nil
	}
	s.records[record.RequestID] = record
	return true, nil
}

func (s *Store) Get(_ context.Context, requestID uuid.UUID) (idempotency.RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[requestID]
	if !exists {
		return idempotency.RequestRecord{}, sentinel.ErrNotFound
	}
	return record, nil
}

func (s *Store) Reclaim(_ context.Context, requestID uuid.UUID, createdAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[requestID]
	if !exists || record.Status != idempotency.StatusFailed {
		return false, nil
	}
	record.Status = idempotency.StatusPending
	record.Result = nil
	record.CreatedAt = createdAt
	record.CompletedAt = time.Time{}
	s.records[requestID] = record
	return true, nil
}

func (s *Store) Complete(_ context.Context, requestID uuid.UUID, result []byte, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[requestID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if record.Status != idempotency.StatusPending {
		return sentinel.ErrInvalidState
	}
	record.Status = idempotency.StatusCompleted
	record.Result = result
	record.CompletedAt = completedAt
	s.records[requestID] = record
	return nil
}

func (s *Store) Fail(_ context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[requestID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if record.Status != idempotency.StatusPending {
		return sentinel.ErrInvalidState
	}
	record.Status = idempotency.StatusFailed
	s.records[requestID] = record
	return nil
}

func (s *Store) ListStalePending(_ context.Context, olderThan time.Time) ([]idempotency.RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []idempotency.RequestRecord
	for _, record := range s.records {
		if record.Status == idempotency.StatusPending && record.CreatedAt.Before(olderThan) {
			stale = append(stale, record)
		}
	}
	return stale, nil
}

// Ensure Store implements idempotency.Store.
var _ idempotency.Store = (*Store)(nil)
