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

const walletColumns = `w.id, w.key, w.store_id, w.solde, w.active, w.created_at, w.updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet. A second wallet for the same store is
// rejected by the unique index and reported as ports.ErrDuplicate.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, key, store_id, solde, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		w.ID, w.Key, w.StoreID, w.Solde, w.Active, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.getOne(ctx, "get wallet by id",
		`SELECT `+walletColumns+` FROM wallets w WHERE w.id = $1`, id)
}

// GetByKey fetches a wallet by its human-readable key.
func (r *WalletRepo) GetByKey(ctx context.Context, key string) (*domain.Wallet, error) {
	return r.getOne(ctx, "get wallet by key",
		`SELECT `+walletColumns+` FROM wallets w WHERE w.key = $1`, key)
}

// GetByStoreID fetches the wallet of a store.
func (r *WalletRepo) GetByStoreID(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error) {
	return r.getOne(ctx, "get wallet by store",
		`SELECT `+walletColumns+` FROM wallets w WHERE w.store_id = $1`, storeID)
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.getOne(ctx, "get wallet for update by id",
		`SELECT `+walletColumns+` FROM wallets w WHERE w.id = $1 FOR UPDATE`, id)
}

// GetByStoreIDForUpdate fetches a store's wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByStoreIDForUpdate(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error) {
	return r.getOne(ctx, "get wallet for update by store",
		`SELECT `+walletColumns+` FROM wallets w WHERE w.store_id = $1 FOR UPDATE`, storeID)
}

// Update writes the balance and active flag of a locked wallet.
func (r *WalletRepo) Update(ctx context.Context, w *domain.Wallet) error {
	query := `UPDATE wallets SET solde = $1, active = $2, updated_at = $3 WHERE id = $4`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, w.Solde, w.Active, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

// List returns one page of wallets visible under the given scope.
func (r *WalletRepo) List(ctx context.Context, params ports.WalletListParams) ([]domain.Wallet, int64, error) {
	var f where
	if params.Scope.ClientID != nil {
		f.add("s.client_id = $%d", *params.Scope.ClientID)
	}
	if params.Scope.LivreurID != nil {
		f.raw("FALSE")
	}
	if params.StoreID != nil {
		f.add("w.store_id = $%d", *params.StoreID)
	}
	if params.Active != nil {
		f.add("w.active = $%d", *params.Active)
	}
	if params.Query != "" {
		f.add("(w.key ILIKE $%d OR s.name ILIKE $%d)", "%"+params.Query+"%")
	}

	from := "FROM wallets w JOIN stores s ON s.id = w.store_id " + f.clause()

	var total int64
	if err := conn(ctx, r.pool).QueryRow(ctx, "SELECT COUNT(*) "+from, f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallets: %w", err)
	}

	limit := f.page(params.Page, params.PageSize)
	rows, err := conn(ctx, r.pool).Query(ctx,
		"SELECT "+walletColumns+" "+from+" ORDER BY w.created_at DESC "+limit, f.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.Key, &w.StoreID, &w.Solde, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, total, nil
}

func (r *WalletRepo) getOne(ctx context.Context, op, query string, arg any) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&w.ID, &w.Key, &w.StoreID, &w.Solde, &w.Active, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
