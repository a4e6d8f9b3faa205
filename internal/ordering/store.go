package ordering

import (
	"context"

	"github.com/google/uuid"
)

// OrderStore persists orders. Interface-driven so the service stays testable
// and storage can be swapped without rewiring business code.
type OrderStore interface {
	Save(ctx context.Context, order Order) error
	FindByID(ctx context.Context, id uuid.UUID) (Order, error)
}
