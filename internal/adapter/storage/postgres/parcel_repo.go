package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eromax-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const colisColumns = `id, code_suivi, store_id, livreur_id, statut, prix, tarif_livraison,
	tarif_refus, fragile, wallet_processed, outcome_at`

// ParcelRepo implements ports.ParcelRepository.
type ParcelRepo struct {
	pool Pool
}

// NewParcelRepo creates a new ParcelRepo.
func NewParcelRepo(pool Pool) *ParcelRepo {
	return &ParcelRepo{pool: pool}
}

// GetByID fetches a parcel.
func (r *ParcelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Colis, error) {
	c := &domain.Colis{}
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+colisColumns+` FROM colis WHERE id = $1`, id).Scan(
		&c.ID, &c.CodeSuivi, &c.StoreID, &c.LivreurID, &c.Statut, &c.Prix, &c.TarifLivraison,
		&c.TarifRefus, &c.Fragile, &c.WalletProcessed, &c.OutcomeAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get colis by id: %w", err)
	}
	return c, nil
}

// SetWalletProcessed flips the parcel's wallet-processed flag.
func (r *ParcelRepo) SetWalletProcessed(ctx context.Context, id uuid.UUID, processed bool) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE colis SET wallet_processed = $1 WHERE id = $2`, processed, id)
	if err != nil {
		return fmt.Errorf("set colis wallet_processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("colis not found: %s", id)
	}
	return nil
}

// ListSettleable returns delivered and refused parcels with an outcome in [from, to).
func (r *ParcelRepo) ListSettleable(ctx context.Context, from, to time.Time) ([]domain.Colis, error) {
	return r.list(ctx, `SELECT `+colisColumns+` FROM colis
		WHERE statut IN ($1, $2) AND outcome_at >= $3 AND outcome_at < $4
		ORDER BY store_id, outcome_at`,
		domain.ColisStatusDelivered, domain.ColisStatusRefused, from, to)
}

// ListPickedUp returns parcels picked up in [from, to).
func (r *ParcelRepo) ListPickedUp(ctx context.Context, from, to time.Time) ([]domain.Colis, error) {
	return r.list(ctx, `SELECT `+colisColumns+` FROM colis
		WHERE statut = $1 AND outcome_at >= $2 AND outcome_at < $3
		ORDER BY store_id, outcome_at`,
		domain.ColisStatusPickedUp, from, to)
}

func (r *ParcelRepo) list(ctx context.Context, query string, args ...any) ([]domain.Colis, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list colis: %w", err)
	}
	defer rows.Close()

	var out []domain.Colis
	for rows.Next() {
		var c domain.Colis
		if err := rows.Scan(
			&c.ID, &c.CodeSuivi, &c.StoreID, &c.LivreurID, &c.Statut, &c.Prix, &c.TarifLivraison,
			&c.TarifRefus, &c.Fragile, &c.WalletProcessed, &c.OutcomeAt,
		); err != nil {
			return nil, fmt.Errorf("scan colis row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate colis rows: %w", err)
	}
	return out, nil
}
