package postgres

import (
	"context"
	"errors"
	"fmt"

	"eromax-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StoreRepo implements ports.StoreRepository.
type StoreRepo struct {
	pool Pool
}

// NewStoreRepo creates a new StoreRepo.
func NewStoreRepo(pool Pool) *StoreRepo {
	return &StoreRepo{pool: pool}
}

// GetByID fetches a store.
func (r *StoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Store, error) {
	s := &domain.Store{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, client_id, name FROM stores WHERE id = $1`, id,
	).Scan(&s.ID, &s.ClientID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get store by id: %w", err)
	}
	return s, nil
}

// ListWithoutWallet returns every store that has no wallet yet.
func (r *StoreRepo) ListWithoutWallet(ctx context.Context) ([]domain.Store, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT s.id, s.client_id, s.name FROM stores s
		LEFT JOIN wallets w ON w.store_id = s.id
		WHERE w.id IS NULL ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("list stores without wallet: %w", err)
	}
	defer rows.Close()

	var stores []domain.Store
	for rows.Next() {
		var s domain.Store
		if err := rows.Scan(&s.ID, &s.ClientID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store rows: %w", err)
	}
	return stores, nil
}

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// GetByID fetches a payout method.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, client_id, bank, rib FROM payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.ClientID, &p.Bank, &p.RIB)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}
