// Package ordering is the business domain the idempotency guard protects:
// order creation under client and network retries.
package ordering

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrLoydHD/eShop/pkg/errs"
)

// OrderItem is one line item on an order.
type OrderItem struct {
	ProductID   int     `json:"productId"`
	ProductName string  `json:"productName"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
}

// Order is the persisted aggregate. Payment data is stored masked: only the
// card brand and the last four digits survive the domain boundary.
type Order struct {
	ID        uuid.UUID   `json:"id"`
	BuyerName string      `json:"buyerName"`
	Street    string      `json:"street"`
	City      string      `json:"city"`
	ZipCode   string      `json:"zipCode"`
	Country   string      `json:"country"`
	CardBrand string      `json:"cardBrand"`
	CardLast4 string      `json:"cardLast4"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CreateOrderCommand carries the full submission, including the raw card
// number. The handler truncates it before anything is persisted or traced.
type CreateOrderCommand struct {
	BuyerName  string
	Street     string
	City       string
	ZipCode    string
	Country    string
	CardNumber string
	CardBrand  string
	Items      []OrderItem
}

// CreateOrderResult is the command's outcome and the snapshot cached for
// duplicate submissions: a duplicate of a completed creation is logical
// success, since the side effect already happened.
type CreateOrderResult struct {
	OrderID uuid.UUID `json:"orderId"`
	Total   float64   `json:"total"`
}

// Validate rejects structurally invalid commands before the guard or any
// handler runs.
func (c CreateOrderCommand) Validate() error {
	if c.BuyerName == "" {
		return errs.New(errs.CodeValidation, "buyer name is required")
	}
	if len(c.Items) == 0 {
		return errs.New(errs.CodeValidation, "order needs at least one item")
	}
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return errs.New(errs.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice < 0 {
			return errs.New(errs.CodeValidation, "item unit price must not be negative")
		}
	}
	return nil
}

// Total computes the command's order total.
func (c CreateOrderCommand) Total() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// cardLast4 truncates a card number to its last four digits.
func cardLast4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
