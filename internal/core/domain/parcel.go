package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ColisStatus is the subset of delivery outcomes the ledger consumes.
type ColisStatus string

const (
	ColisStatusDelivered ColisStatus = "Livrée"
	ColisStatusRefused   ColisStatus = "Refusée"
	ColisStatusPickedUp  ColisStatus = "Ramassée"
)

// Colis is the ledger's read view of a parcel. Tariffs are computed
// upstream and only read here.
type Colis struct {
	ID              uuid.UUID       `json:"id"`
	CodeSuivi       string          `json:"code_suivi"`
	StoreID         uuid.UUID       `json:"store_id"`
	LivreurID       *uuid.UUID      `json:"livreur_id,omitempty"`
	Statut          ColisStatus     `json:"statut"`
	Prix            decimal.Decimal `json:"prix"`
	TarifLivraison  decimal.Decimal `json:"tarif_livraison"`
	TarifRefus      decimal.Decimal `json:"tarif_refus"`
	Fragile         bool            `json:"fragile"`
	WalletProcessed bool            `json:"wallet_processed"`
	OutcomeAt       time.Time       `json:"outcome_at"`
}

// IsDelivered is true for Livrée parcels.
func (c *Colis) IsDelivered() bool {
	return c.Statut == ColisStatusDelivered
}
