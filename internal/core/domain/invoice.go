package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FactureType distinguishes who an invoice settles with.
type FactureType string

const (
	FactureTypeClient  FactureType = "client"
	FactureTypeLivreur FactureType = "livreur"
)

// Invoice code prefixes.
const (
	CodePrefixClient  = "FCTL"
	CodePrefixLivreur = "FCTLV"
	CodePrefixPickup  = "FCTR"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Facture aggregates one day of delivered or refused parcels for a store
// (client invoice) or a courier (livreur invoice).
type Facture struct {
	ID              uuid.UUID       `json:"id"`
	Code            string          `json:"code"`
	Type            FactureType     `json:"type"`
	StoreID         *uuid.UUID      `json:"store_id,omitempty"`
	LivreurID       *uuid.UUID      `json:"livreur_id,omitempty"`
	Day             time.Time       `json:"day"`
	ColisIDs        []uuid.UUID     `json:"colis"`
	TotalPrix       decimal.Decimal `json:"total_prix"`
	TarifLivraison  decimal.Decimal `json:"tarif_livraison"`
	TarifFragile    decimal.Decimal `json:"tarif_fragile"`
	TotalTarif      decimal.Decimal `json:"total_tarif"`
	TotalFraisRefus decimal.Decimal `json:"total_frais_refus"`
	NetAPayer       decimal.Decimal `json:"net_a_payer"`
	CreatedAt       time.Time       `json:"created_at"`
}

// FactureRamasser records one day of pickups for a store. It moves no money.
type FactureRamasser struct {
	ID        uuid.UUID   `json:"id"`
	Code      string      `json:"code"`
	StoreID   uuid.UUID   `json:"store_id"`
	Day       time.Time   `json:"day"`
	ColisIDs  []uuid.UUID `json:"colis"`
	CreatedAt time.Time   `json:"created_at"`
}

// InvoiceTotals holds the computed amounts of a settlement group.
type InvoiceTotals struct {
	TotalPrix       decimal.Decimal
	TarifLivraison  decimal.Decimal
	TarifFragile    decimal.Decimal
	TotalTarif      decimal.Decimal
	TotalFraisRefus decimal.Decimal
	NetAPayer       decimal.Decimal
}

// ParcelNet is what a single parcel contributes to the net payable.
// Summing ParcelNet over a group gives ComputeTotals(...).NetAPayer.
func ParcelNet(c Colis, fragileFee decimal.Decimal) decimal.Decimal {
	net := decimal.Zero
	if c.IsDelivered() {
		net = net.Add(c.Prix).Sub(c.TarifLivraison)
	} else {
		// refused: refusal tariff is billed as delivery tariff and as refusal fee
		net = net.Sub(c.TarifRefus).Sub(c.TarifRefus)
	}
	if c.Fragile {
		net = net.Sub(fragileFee)
	}
	return net
}

// ComputeTotals aggregates a group of delivered or refused parcels.
func ComputeTotals(colis []Colis, fragileFee decimal.Decimal) InvoiceTotals {
	t := InvoiceTotals{
		TotalPrix:       decimal.Zero,
		TarifLivraison:  decimal.Zero,
		TarifFragile:    decimal.Zero,
		TotalFraisRefus: decimal.Zero,
	}
	for _, c := range colis {
		if c.IsDelivered() {
			t.TotalPrix = t.TotalPrix.Add(c.Prix)
			t.TarifLivraison = t.TarifLivraison.Add(c.TarifLivraison)
		} else {
			t.TarifLivraison = t.TarifLivraison.Add(c.TarifRefus)
			t.TotalFraisRefus = t.TotalFraisRefus.Add(c.TarifRefus)
		}
		if c.Fragile {
			t.TarifFragile = t.TarifFragile.Add(fragileFee)
		}
	}
	t.TotalTarif = t.TarifLivraison.Add(t.TarifFragile)
	t.NetAPayer = t.TotalPrix.Sub(t.TotalTarif).Sub(t.TotalFraisRefus)
	return t
}

// GenerateInvoiceCode returns <prefix><yyyymmdd>-<5 random chars>.
func GenerateInvoiceCode(prefix string, day time.Time) (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invoice code: %w", err)
	}
	suffix := make([]byte, len(buf))
	for i, b := range buf {
		suffix[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return prefix + day.Format("20060102") + "-" + string(suffix), nil
}

// DayStart truncates t to midnight in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
