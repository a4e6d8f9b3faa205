// Package postgres provides the durable request registry. The atomic claim is
// a unique-constraint insert (ON CONFLICT DO NOTHING); transitions are
// conditional UPDATEs whose affected-row count decides the winner, so two
// writers can never both observe "no record" and proceed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrLoydHD/eShop/internal/idempotency"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
)

// Schema creates the client_requests table. Exposed so operators and
// integration tests can apply it; the store does not migrate on its own.
const Schema = `
CREATE TABLE IF NOT EXISTS client_requests (
	request_id   uuid PRIMARY KEY,
	command_type text        NOT NULL,
	status       text        NOT NULL,
	result       jsonb,
	created_at   timestamptz NOT NULL,
	completed_at timestamptz
)`

// Store implements idempotency.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies the table definition. Intended for tests and local
// bootstraps; production deployments own their migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure client_requests schema: %w", err)
	}
	return nil
}

func (s *Store) Claim(ctx context.Context, record idempotency.RequestRecord) (bool, error) {
	query := `
		INSERT INTO client_requests (request_id, command_type, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		record.RequestID,
		record.CommandType,
		string(record.Status),
		record.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert client request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Get(ctx context.Context, requestID uuid.UUID) (idempotency.RequestRecord, error) {
	query := `
		SELECT request_id, command_type, status, result, created_at, completed_at
		FROM client_requests
		WHERE request_id = $1
	`
	var (
		record      idempotency.RequestRecord
		status      string
		completedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, requestID).Scan(
		&record.RequestID,
		&record.CommandType,
		&status,
		&record.Result,
		&record.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.RequestRecord{}, sentinel.ErrNotFound
		}
		return idempotency.RequestRecord{}, fmt.Errorf("query client request: %w", err)
	}
	record.Status = idempotency.Status(status)
	if completedAt != nil {
		record.CompletedAt = *completedAt
	}
	return record, nil
}

func (s *Store) Reclaim(ctx context.Context, requestID uuid.UUID, createdAt time.Time) (bool, error) {
	query := `
		UPDATE client_requests
		SET status = $2, result = NULL, created_at = $3, completed_at = NULL
		WHERE request_id = $1 AND status = $4
	`
	tag, err := s.pool.Exec(ctx, query,
		requestID,
		string(idempotency.StatusPending),
		createdAt,
		string(idempotency.StatusFailed),
	)
	if err != nil {
		return false, fmt.Errorf("reclaim client request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Complete(ctx context.Context, requestID uuid.UUID, result []byte, completedAt time.Time) error {
	query := `
		UPDATE client_requests
		SET status = $2, result = $3, completed_at = $4
		WHERE request_id = $1 AND status = $5
	`
	tag, err := s.pool.Exec(ctx, query,
		requestID,
		string(idempotency.StatusCompleted),
		result,
		completedAt,
		string(idempotency.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("complete client request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Store) Fail(ctx context.Context, requestID uuid.UUID) error {
	query := `
		UPDATE client_requests
		SET status = $2
		WHERE request_id = $1 AND status = $3
	`
	tag, err := s.pool.Exec(ctx, query,
		requestID,
		string(idempotency.StatusFailed),
		string(idempotency.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark client request failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time) ([]idempotency.RequestRecord, error) {
	query := `
		SELECT request_id, command_type, status, result, created_at, completed_at
		FROM client_requests
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, string(idempotency.StatusPending), olderThan)
	if err != nil {
		return nil, fmt.Errorf("query stale pending requests: %w", err)
	}
	defer rows.Close()

	var stale []idempotency.RequestRecord
	for rows.Next() {
		var (
			record      idempotency.RequestRecord
			status      string
			completedAt *time.Time
		)
		if err := rows.Scan(
			&record.RequestID,
			&record.CommandType,
			&status,
			&record.Result,
			&record.CreatedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stale pending request: %w", err)
		}
		record.Status = idempotency.Status(status)
		if completedAt != nil {
			record.CompletedAt = *completedAt
		}
		stale = append(stale, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale pending requests: %w", err)
	}
	return stale, nil
}

// Ensure Store implements idempotency.Store.
var _ idempotency.Store = (*Store)(nil)
