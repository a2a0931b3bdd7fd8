package postgres

import (
	"context"
	"fmt"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// Parcel-link uniqueness constraints from the ledger migration.
const (
	constraintFactureColis         = "facture_colis_colis_id_facture_type_key"
	constraintFactureRamasserColis = "facture_ramasser_colis_colis_id_key"
)

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// IsInvoiced reports whether a parcel already belongs to an invoice of typ.
func (r *InvoiceRepo) IsInvoiced(ctx context.Context, colisID uuid.UUID, typ domain.FactureType) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM facture_colis WHERE colis_id = $1 AND facture_type = $2)`,
		colisID, typ,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check colis invoiced: %w", err)
	}
	return exists, nil
}

// IsPickupInvoiced reports whether a parcel already belongs to a pickup invoice.
func (r *InvoiceRepo) IsPickupInvoiced(ctx context.Context, colisID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM facture_ramasser_colis WHERE colis_id = $1)`, colisID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check colis pickup invoiced: %w", err)
	}
	return exists, nil
}

// CreateFacture inserts the invoice and links its parcels. A code already in
// use yields ports.ErrCodeTaken and leaves the transaction usable; a parcel
// already linked to an invoice of the same type yields ports.ErrDuplicate.
func (r *InvoiceRepo) CreateFacture(ctx context.Context, f *domain.Facture) error {
	q := conn(ctx, r.pool)

	tag, err := q.Exec(ctx, `INSERT INTO factures (id, code, type, store_id, livreur_id, day,
		total_prix, tarif_livraison, tarif_fragile, total_tarif, total_frais_refus, net_a_payer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO NOTHING`,
		f.ID, f.Code, f.Type, f.StoreID, f.LivreurID, f.Day,
		f.TotalPrix, f.TarifLivraison, f.TarifFragile, f.TotalTarif, f.TotalFraisRefus, f.NetAPayer, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert facture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrCodeTaken
	}

	for _, colisID := range f.ColisIDs {
		_, err := q.Exec(ctx,
			`INSERT INTO facture_colis (facture_id, colis_id, facture_type) VALUES ($1, $2, $3)`,
			f.ID, colisID, f.Type)
		if err != nil {
			if isUniqueViolationOn(err, constraintFactureColis) {
				return ports.ErrDuplicate
			}
			return fmt.Errorf("link colis to facture: %w", err)
		}
	}
	return nil
}

// CreateFactureRamasser inserts a pickup invoice and links its parcels.
func (r *InvoiceRepo) CreateFactureRamasser(ctx context.Context, f *domain.FactureRamasser) error {
	q := conn(ctx, r.pool)

	tag, err := q.Exec(ctx, `INSERT INTO factures_ramasser (id, code, store_id, day, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`,
		f.ID, f.Code, f.StoreID, f.Day, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert facture ramasser: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrCodeTaken
	}

	for _, colisID := range f.ColisIDs {
		_, err := q.Exec(ctx,
			`INSERT INTO facture_ramasser_colis (facture_id, colis_id) VALUES ($1, $2)`,
			f.ID, colisID)
		if err != nil {
			if isUniqueViolationOn(err, constraintFactureRamasserColis) {
				return ports.ErrDuplicate
			}
			return fmt.Errorf("link colis to facture ramasser: %w", err)
		}
	}
	return nil
}
