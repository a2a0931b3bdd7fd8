package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `wd.id, wd.wallet_id, wd.payment_id, wd.admin_id, wd.montant, wd.frais,
	wd.status, wd.status_history, wd.proof, wd.created_at, wd.updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// constraintActiveWithdrawal is the partial unique index over non-terminal requests.
const constraintActiveWithdrawal = "withdrawals_active_unique"

// Create inserts a withdrawal. The partial unique index on non-terminal
// requests turns a double submission into ports.ErrDuplicate.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	history, err := json.Marshal(w.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	query := `INSERT INTO withdrawals (id, wallet_id, payment_id, admin_id, montant, frais,
		status, status_history, proof, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = conn(ctx, r.pool).Exec(ctx, query,
		w.ID, w.WalletID, w.PaymentID, w.AdminID, w.Montant, w.Frais,
		w.Status, history, w.Proof, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolationOn(err, constraintActiveWithdrawal) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal by ID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals wd WHERE wd.id = $1`, id)
	return r.scanWithdrawal(row)
}

// GetByIDForUpdate fetches a withdrawal and locks its row.
// This MUST be called within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals wd WHERE wd.id = $1 FOR UPDATE`, id)
	return r.scanWithdrawal(row)
}

// Update writes status, history and proof.
func (r *WithdrawalRepo) Update(ctx context.Context, w *domain.Withdrawal) error {
	history, err := json.Marshal(w.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	query := `UPDATE withdrawals SET status = $1, status_history = $2, proof = $3, updated_at = $4 WHERE id = $5`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, w.Status, history, w.Proof, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", w.ID)
	}
	return nil
}

// List returns one page of withdrawals visible under the given scope.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.Withdrawal, int64, error) {
	var f where
	if params.Scope.ClientID != nil {
		f.add("s.client_id = $%d", *params.Scope.ClientID)
	}
	if params.Scope.LivreurID != nil {
		f.raw("FALSE")
	}
	if params.WalletID != nil {
		f.add("wd.wallet_id = $%d", *params.WalletID)
	}
	if params.StoreID != nil {
		f.add("w.store_id = $%d", *params.StoreID)
	}
	if params.Status != nil {
		f.add("wd.status = $%d", *params.Status)
	}
	if params.From != nil {
		f.add("wd.created_at >= $%d", *params.From)
	}
	if params.To != nil {
		f.add("wd.created_at <= $%d", *params.To)
	}

	from := `FROM withdrawals wd
		JOIN wallets w ON w.id = wd.wallet_id
		JOIN stores s ON s.id = w.store_id ` + f.clause()

	var total int64
	if err := conn(ctx, r.pool).QueryRow(ctx, "SELECT COUNT(*) "+from, f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	limit := f.page(params.Page, params.PageSize)
	rows, err := conn(ctx, r.pool).Query(ctx,
		"SELECT "+withdrawalColumns+" "+from+" ORDER BY wd.created_at DESC "+limit, f.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		w, err := r.scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		withdrawals = append(withdrawals, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return withdrawals, total, nil
}

func (r *WithdrawalRepo) scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	var history []byte
	err := row.Scan(
		&w.ID, &w.WalletID, &w.PaymentID, &w.AdminID, &w.Montant, &w.Frais,
		&w.Status, &history, &w.Proof, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &w.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	return w, nil
}
