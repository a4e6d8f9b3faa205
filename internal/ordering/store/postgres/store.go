// Package postgres persists orders with line items as jsonb. Insertion is
// idempotent on the order ID so a replayed Save after a crash cannot create a
// second row.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"github.com/MrLoydHD/eShop/internal/ordering"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Schema creates the orders table. Applied by tests and local bootstraps.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         uuid PRIMARY KEY,
	buyer_name text        NOT NULL,
	street     text        NOT NULL,
	city       text        NOT NULL,
	zip_code   text        NOT NULL,
	country    text        NOT NULL,
	card_brand text        NOT NULL,
	card_last4 text        NOT NULL,
	items      jsonb       NOT NULL,
	total      numeric     NOT NULL,
	created_at timestamptz NOT NULL
)`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure orders schema: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, order ordering.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, buyer_name, street, city, zip_code, country,
			card_brand, card_last4, items, total, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		order.ID,
		order.BuyerName,
		order.Street,
		order.City,
		order.ZipCode,
		order.Country,
		order.CardBrand,
		order.CardLast4,
		items,
		order.Total,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (ordering.Order, error) {
	query := `
		SELECT id, buyer_name, street, city, zip_code, country,
		       card_brand, card_last4, items, total, created_at
		FROM orders
		WHERE id = $1
	`
	var (
		order ordering.Order
		items []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.BuyerName,
		&order.Street,
		&order.City,
		&order.ZipCode,
		&order.Country,
		&order.CardBrand,
		&order.CardLast4,
		&items,
		&order.Total,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ordering.Order{}, sentinel.ErrNotFound
		}
		return ordering.Order{}, fmt.Errorf("query order: %w", err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return ordering.Order{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	return order, nil
}

var _ ordering.OrderStore = (*Store)(nil)
