//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLoydHD/eShop/internal/idempotency"
	"github.com/MrLoydHD/eShop/internal/idempotency/store/postgres"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
	"github.com/MrLoydHD/eShop/pkg/testutil/containers"
)

func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container := containers.NewPostgresContainer(t)
	store := postgres.New(container.Pool)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func pendingRecord(requestID uuid.UUID) idempotency.RequestRecord {
	return idempotency.RequestRecord{
		RequestID:   requestID,
		CommandType: "CreateOrderCommand",
		Status:      idempotency.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestClaimIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	requestID := uuid.New()

	const claimers = 16
	var wins atomic.Int64
	var wg sync.WaitGroup
	wg.Add(claimers)
	for i := 0; i < claimers; i++ {
		go func() {
			defer wg.Done()
			claimed, err := store.Claim(ctx, pendingRecord(requestID))
			assert.NoError(t, err)
			if claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())

	record, err := store.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusPending, record.Status)
	assert.Equal(t, "CreateOrderCommand", record.CommandType)
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	requestID := uuid.New()

	claimed, err := store.Claim(ctx, pendingRecord(requestID))
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Fail(ctx, requestID))

	// Only one concurrent retry wins the reclaim.
	const retriers = 8
	var wins atomic.Int64
	var wg sync.WaitGroup
	wg.Add(retriers)
	for i := 0; i < retriers; i++ {
		go func() {
			defer wg.Done()
			won, err := store.Reclaim(ctx, requestID, time.Now().UTC())
			assert.NoError(t, err)
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())

	require.NoError(t, store.Complete(ctx, requestID, []byte(`{"orderId":"ord-1"}`), time.Now().UTC()))

	record, err := store.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusCompleted, record.Status)
	assert.JSONEq(t, `{"orderId":"ord-1"}`, string(record.Result))

	// Completed records cannot be completed or failed again.
	assert.True(t, errors.Is(store.Complete(ctx, requestID, nil, time.Now().UTC()), sentinel.ErrInvalidState))
	assert.True(t, errors.Is(store.Fail(ctx, requestID), sentinel.ErrInvalidState))
}

func TestGetUnknown(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestListStalePending(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	stale := pendingRecord(uuid.New())
	stale.CreatedAt = time.Now().UTC().Add(-time.Hour)
	_, err := store.Claim(ctx, stale)
	require.NoError(t, err)

	fresh := pendingRecord(uuid.New())
	_, err = store.Claim(ctx, fresh)
	require.NoError(t, err)

	records, err := store.ListStalePending(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, stale.RequestID, records[0].RequestID)
}

func TestGuardOverPostgres(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	guard := idempotency.New(store, idempotency.WithWait(2*time.Second, 10*time.Millisecond))
	requestID := uuid.New()

	outcome, err := guard.Begin(ctx, requestID, "CreateOrderCommand")
	require.NoError(t, err)
	require.Equal(t, idempotency.Proceed, outcome.Decision)
	require.NoError(t, guard.Complete(ctx, requestID, map[string]string{"orderId": "ord-2"}))

	outcome, err = guard.Begin(ctx, requestID, "CreateOrderCommand")
	require.NoError(t, err)
	assert.Equal(t, idempotency.Cached, outcome.Decision)
	assert.JSONEq(t, `{"orderId":"ord-2"}`, string(outcome.Result))
}
