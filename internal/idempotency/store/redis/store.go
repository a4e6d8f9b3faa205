// Package redis provides a request registry on Redis. The atomic claim uses
// SETNX; transitions run inside WATCH/MULTI so a concurrent writer aborts the
// transaction instead of both winning.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrLoydHD/eShop/internal/idempotency"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const keyPrefix = "eshop:idem:"

// storedRecord is the JSON value kept per request ID.
type storedRecord struct {
	RequestID   string `json:"requestId"`
	CommandType string `json:"commandType"`
	Status      string `json:"status"`
	Result      []byte `json:"result,omitempty"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Store implements idempotency.Store on a Redis client. Records carry no TTL:
// retention is an external concern, same as the relational store.
type Store struct {
	client *goredis.Client
}

func New(client *goredis.Client) *Store {
	return &Store{client: client}
}

func recordKey(requestID uuid.UUID) string {
	return keyPrefix + requestID.String()
}

func (s *Store) Claim(ctx context.Context, record idempotency.RequestRecord) (bool, error) {
	value, err := encode(record)
	if err != nil {
		return false, err
	}
	claimed, err := s.client.SetNX(ctx, recordKey(record.RequestID), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("setnx client request: %w", err)
	}
	return claimed, nil
}

func (s *Store) Get(ctx context.Context, requestID uuid.UUID) (idempotency.RequestRecord, error) {
	raw, err := s.client.Get(ctx, recordKey(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return idempotency.RequestRecord{}, sentinel.ErrNotFound
		}
		return idempotency.RequestRecord{}, fmt.Errorf("get client request: %w", err)
	}
	return decode(raw)
}

func (s *Store) Reclaim(ctx context.Context, requestID uuid.UUID, createdAt time.Time) (bool, error) {
	won := false
	err := s.transition(ctx, requestID, func(record *idempotency.RequestRecord) bool {
		if record.Status != idempotency.StatusFailed {
			return false
		}
		record.Status = idempotency.StatusPending
		record.Result = nil
		record.CreatedAt = createdAt
		record.CompletedAt = time.Time{}
		won = true
		return true
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return won, nil
}

func (s *Store) Complete(ctx context.Context, requestID uuid.UUID, result []byte, completedAt time.Time) error {
	return s.transition(ctx, requestID, func(record *idempotency.RequestRecord) bool {
		if record.Status != idempotency.StatusPending {
			return false
		}
		record.Status = idempotency.StatusCompleted
		record.Result = result
		record.CompletedAt = completedAt
		return true
	})
}

func (s *Store) Fail(ctx context.Context, requestID uuid.UUID) error {
	return s.transition(ctx, requestID, func(record *idempotency.RequestRecord) bool {
		if record.Status != idempotency.StatusPending {
			return false
		}
		record.Status = idempotency.StatusFailed
		return true
	})
}

// transition runs a conditional state change under WATCH so a concurrent
// writer causes a retry instead of a lost update. The mutate func returns
// false when the record is in the wrong state for the transition.
func (s *Store) transition(ctx context.Context, requestID uuid.UUID, mutate func(*idempotency.RequestRecord) bool) error {
	key := recordKey(requestID)

	for attempt := 0; attempt < 5; attempt++ {
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, goredis.Nil) {
					return sentinel.ErrNotFound
				}
				return fmt.Errorf("get client request: %w", err)
			}
			record, err := decode(raw)
			if err != nil {
				return err
			}
			if !mutate(&record) {
				return sentinel.ErrInvalidState
			}
			value, err := encode(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, value, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, goredis.TxFailedErr) {
			continue // lost the race, re-read and retry
		}
		return err
	}
	return sentinel.ErrUnavailable
}

func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time) ([]idempotency.RequestRecord, error) {
	var stale []idempotency.RequestRecord

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get client request: %w", err)
		}
		record, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if record.Status == idempotency.StatusPending && record.CreatedAt.Before(olderThan) {
			stale = append(stale, record)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan client requests: %w", err)
	}
	return stale, nil
}

func encode(record idempotency.RequestRecord) ([]byte, error) {
	stored := storedRecord{
		RequestID:   record.RequestID.String(),
		CommandType: record.CommandType,
		Status:      string(record.Status),
		Result:      record.Result,
		CreatedAt:   record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !record.CompletedAt.IsZero() {
		stored.CompletedAt = record.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode client request: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (idempotency.RequestRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return idempotency.RequestRecord{}, fmt.Errorf("decode client request: %w", err)
	}
	requestID, err := uuid.Parse(stored.RequestID)
	if err != nil {
		return idempotency.RequestRecord{}, fmt.Errorf("decode client request id: %w", err)
	}
	record := idempotency.RequestRecord{
		RequestID:   requestID,
		CommandType: stored.CommandType,
		Status:      idempotency.Status(stored.Status),
		Result:      stored.Result,
	}
	if stored.CreatedAt != "" {
		if record.CreatedAt, err = time.Parse(time.RFC3339Nano, stored.CreatedAt); err != nil {
			return idempotency.RequestRecord{}, fmt.Errorf("decode created_at: %w", err)
		}
	}
	if stored.CompletedAt != "" {
		if record.CompletedAt, err = time.Parse(time.RFC3339Nano, stored.CompletedAt); err != nil {
			return idempotency.RequestRecord{}, fmt.Errorf("decode completed_at: %w", err)
		}
	}
	return record, nil
}

// Ensure Store implements idempotency.Store.
var _ idempotency.Store = (*Store)(nil)
