package postgres

import (
	"context"
	"errors"
	"fmt"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transferColumns = `t.id, t.wallet_id, t.colis_id, t.admin_id, t.type, t.status, t.montant,
	t.original_montant, t.correction_date, t.description, t.created_at, t.updated_at`

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

// Create appends a ledger entry.
func (r *TransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	query := `INSERT INTO transfers (id, wallet_id, colis_id, admin_id, type, status, montant,
		original_montant, correction_date, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		t.ID, t.WalletID, t.ColisID, t.AdminID, t.Type, t.Status, t.Montant,
		t.OriginalMontant, t.CorrectionDate, t.Description, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID fetches a transfer by ID.
func (r *TransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers t WHERE t.id = $1`, id)
	return r.scanTransfer(row)
}

// GetByIDForUpdate fetches a transfer and locks its row so two concurrent
// status changes cannot both apply their balance effect.
func (r *TransferRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers t WHERE t.id = $1 FOR UPDATE`, id)
	return r.scanTransfer(row)
}

// Update writes the mutable fields of a transfer.
func (r *TransferRepo) Update(ctx context.Context, t *domain.Transfer) error {
	query := `UPDATE transfers SET type = $1, status = $2, montant = $3, original_montant = $4,
		correction_date = $5, description = $6, updated_at = $7 WHERE id = $8`

	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		t.Type, t.Status, t.Montant, t.OriginalMontant,
		t.CorrectionDate, t.Description, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer not found: %s", t.ID)
	}
	return nil
}

// Delete physically removes a transfer.
func (r *TransferRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM transfers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer not found: %s", id)
	}
	return nil
}

// SumActive returns the sum of validated and corrected amounts for a wallet.
func (r *TransferRepo) SumActive(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(montant), 0) FROM transfers
		WHERE wallet_id = $1 AND status IN ($2, $3)`

	var sum decimal.Decimal
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		walletID, domain.TransferStatusValidated, domain.TransferStatusCorrected,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum active transfers: %w", err)
	}
	return sum, nil
}

// List returns one page of transfers visible under the given scope.
func (r *TransferRepo) List(ctx context.Context, params ports.TransferListParams) ([]domain.Transfer, int64, error) {
	var f where
	if params.Scope.ClientID != nil {
		f.add("s.client_id = $%d", *params.Scope.ClientID)
	}
	if params.Scope.LivreurID != nil {
		f.add("c.livreur_id = $%d", *params.Scope.LivreurID)
	}
	if params.WalletID != nil {
		f.add("t.wallet_id = $%d", *params.WalletID)
	}
	if params.StoreID != nil {
		f.add("w.store_id = $%d", *params.StoreID)
	}
	if params.Status != nil {
		f.add("t.status = $%d", *params.Status)
	}
	if params.Type != nil {
		f.add("t.type = $%d", *params.Type)
	}
	if params.From != nil {
		f.add("t.created_at >= $%d", *params.From)
	}
	if params.To != nil {
		f.add("t.created_at <= $%d", *params.To)
	}
	if params.Query != "" {
		f.add("(w.key ILIKE $%d OR c.code_suivi ILIKE $%d)", "%"+params.Query+"%")
	}

	from := `FROM transfers t
		JOIN wallets w ON w.id = t.wallet_id
		JOIN stores s ON s.id = w.store_id
		LEFT JOIN colis c ON c.id = t.colis_id ` + f.clause()

	var total int64
	if err := conn(ctx, r.pool).QueryRow(ctx, "SELECT COUNT(*) "+from, f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}

	limit := f.page(params.Page, params.PageSize)
	rows, err := conn(ctx, r.pool).Query(ctx,
		"SELECT "+transferColumns+" "+from+" ORDER BY t.created_at DESC "+limit, f.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := r.scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transfer rows: %w", err)
	}
	return transfers, total, nil
}

// scanTransfer is a helper to scan a single row into a Transfer.
func (r *TransferRepo) scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	t := &domain.Transfer{}
	err := row.Scan(
		&t.ID, &t.WalletID, &t.ColisID, &t.AdminID, &t.Type, &t.Status, &t.Montant,
		&t.OriginalMontant, &t.CorrectionDate, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	return t, nil
}
