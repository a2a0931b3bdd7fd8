package postgres

import (
	"context"
	"errors"
	"fmt"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const constraintIdempotencyKey = "idempotency_records_pkey"

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create records the outcome of a keyed operation. Called inside the scope
// that applies the operation, so the record commits or rolls back with it.
func (r *IdempotencyRepo) Create(ctx context.Context, rec *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_records (operation, actor_id, key, transfer_id, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		rec.Operation, rec.ActorID, rec.Key, rec.TransferID, rec.Response, rec.CreatedAt)
	if err != nil {
		if isUniqueViolationOn(err, constraintIdempotencyKey) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// Get fetches a record by operation, actor and key.
func (r *IdempotencyRepo) Get(ctx context.Context, operation string, actorID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT operation, actor_id, key, transfer_id, response, created_at
		FROM idempotency_records WHERE operation = $1 AND actor_id = $2 AND key = $3`

	rec := &domain.IdempotencyRecord{}
	err := conn(ctx, r.pool).QueryRow(ctx, query, operation, actorID, key).Scan(
		&rec.Operation, &rec.ActorID, &rec.Key, &rec.TransferID, &rec.Response, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return rec, nil
}
