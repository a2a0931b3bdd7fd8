package domain

import (
	"strings"
	"time"

	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferType labels the event that moved the balance.
type TransferType string

const (
	TransferTypeDeposit          TransferType = "Deposit"
	TransferTypeCorrection       TransferType = "Correction"
	TransferTypeManualDeposit    TransferType = "Manuel Depot"
	TransferTypeManualWithdrawal TransferType = "Manuel Withdrawal"
	TransferTypeWithdrawal       TransferType = "withdrawal"
)

// Valid reports whether t is a known transfer type.
func (t TransferType) Valid() bool {
	switch t {
	case TransferTypeDeposit, TransferTypeCorrection, TransferTypeManualDeposit,
		TransferTypeManualWithdrawal, TransferTypeWithdrawal:
		return true
	}
	return false
}

// TransferStatus governs whether a transfer's amount counts against the wallet.
type TransferStatus string

const (
	TransferStatusValidated TransferStatus = "validé"
	TransferStatusCorrected TransferStatus = "corrigé"
	TransferStatusCancelled TransferStatus = "annuler"
	TransferStatusPending   TransferStatus = "pending"
)

// Valid reports whether s is a known transfer status.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusValidated, TransferStatusCorrected, TransferStatusCancelled, TransferStatusPending:
		return true
	}
	return false
}

// IsActive is true when the transfer's montant is part of the wallet balance.
func (s TransferStatus) IsActive() bool {
	return s == TransferStatusValidated || s == TransferStatusCorrected
}

// Transfer is one ledger entry.
type Transfer struct {
	ID              uuid.UUID        `json:"id"`
	WalletID        uuid.UUID        `json:"wallet_id"`
	ColisID         *uuid.UUID       `json:"colis_id,omitempty"`
	AdminID         *uuid.UUID       `json:"admin_id,omitempty"`
	Type            TransferType     `json:"type"`
	Status          TransferStatus   `json:"status"`
	Montant         decimal.Decimal  `json:"montant"`
	OriginalMontant *decimal.Decimal `json:"original_montant,omitempty"`
	CorrectionDate  *time.Time       `json:"correction_date,omitempty"`
	Description     *string          `json:"description,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewTransfer builds a validated transfer.
func NewTransfer(walletID uuid.UUID, typ TransferType, montant decimal.Decimal, now time.Time) *Transfer {
	return &Transfer{
		ID:        uuid.New(),
		WalletID:  walletID,
		Type:      typ,
		Status:    TransferStatusValidated,
		Montant:   montant,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Effect is the amount this transfer currently contributes to its wallet.
func (t *Transfer) Effect() decimal.Decimal {
	if t.Status.IsActive() {
		return t.Montant
	}
	return decimal.Zero
}

// Transition moves the transfer to status `to` and returns the delta the
// wallet balance must absorb in the same atomic scope. Corrections go
// through Correct.
func (t *Transfer) Transition(to TransferStatus, now time.Time) (decimal.Decimal, error) {
	switch to {
	case TransferStatusCancelled:
		if t.Status == TransferStatusCancelled {
			return decimal.Zero, apperror.ErrTransferAlreadyCancelled()
		}
	case TransferStatusValidated:
		if t.Status == TransferStatusValidated {
			return decimal.Zero, apperror.ErrTransferAlreadyValidated()
		}
	default:
		return decimal.Zero, apperror.ErrIllegalTransition(string(t.Status), string(to))
	}

	before := t.Effect()
	t.Status = to
	t.UpdatedAt = now
	return t.Effect().Sub(before), nil
}

// Correct replaces the amount of a validated transfer, keeping the previous
// amount for audit, and returns the balance difference.
func (t *Transfer) Correct(newAmount decimal.Decimal, description string, now time.Time) (decimal.Decimal, error) {
	if t.Status != TransferStatusValidated || t.Type == TransferTypeCorrection {
		return decimal.Zero, apperror.ErrTransferNotCorrectable()
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return decimal.Zero, apperror.ErrDescriptionRequired()
	}

	old := t.Montant
	difference := newAmount.Sub(old)

	t.OriginalMontant = &old
	t.Montant = newAmount
	t.Status = TransferStatusCorrected
	t.Type = TransferTypeCorrection
	t.CorrectionDate = &now
	t.Description = &description
	t.UpdatedAt = now
	return difference, nil
}
