package ordering

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
)

// MemoryOrderStore keeps orders in a mutex-guarded map for tests and
// single-process runs.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[uuid.UUID]Order)}
}

func (s *MemoryOrderStore) Save(_ context.Context, order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (s *MemoryOrderStore) FindByID(_ context.Context, id uuid.UUID) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, exists := s.orders[id]
	if !exists {
		return Order{}, sentinel.ErrNotFound
	}
	return order, nil
}

// Count reports how many orders have been saved. Used by tests asserting
// at-most-once execution.
func (s *MemoryOrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

var _ OrderStore = (*MemoryOrderStore)(nil)
