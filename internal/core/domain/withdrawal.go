package domain

import (
	"time"

	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus is a stage of the payout workflow.
type WithdrawalStatus string

const (
	WithdrawalStatusWaiting    WithdrawalStatus = "waiting"
	WithdrawalStatusSeen       WithdrawalStatus = "seen"
	WithdrawalStatusChecking   WithdrawalStatus = "checking"
	WithdrawalStatusAccepted   WithdrawalStatus = "accepted"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusDone       WithdrawalStatus = "done"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

// forward order of the happy path; rejected sits outside it.
var withdrawalRank = map[WithdrawalStatus]int{
	WithdrawalStatusWaiting:    0,
	WithdrawalStatusSeen:       1,
	WithdrawalStatusChecking:   2,
	WithdrawalStatusAccepted:   3,
	WithdrawalStatusProcessing: 4,
	WithdrawalStatusDone:       5,
}

// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	_, ok := withdrawalRank[s]
	return ok || s == WithdrawalStatusRejected
}

// IsTerminal is true for done and rejected.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusDone || s == WithdrawalStatusRejected
}

// NonTerminalWithdrawalStatuses lists the statuses covered by the duplicate guard.
func NonTerminalWithdrawalStatuses() []WithdrawalStatus {
	return []WithdrawalStatus{
		WithdrawalStatusWaiting, WithdrawalStatusSeen, WithdrawalStatusChecking,
		WithdrawalStatusAccepted, WithdrawalStatusProcessing,
	}
}

// StatusEntry is one line of a withdrawal's history.
type StatusEntry struct {
	Status WithdrawalStatus `json:"status"`
	Date   time.Time        `json:"date"`
	Note   string           `json:"note,omitempty"`
}

// Withdrawal is a payout request. Montant is net of Frais; the wallet was
// debited by Montant+Frais at creation.
type Withdrawal struct {
	ID            uuid.UUID        `json:"id"`
	WalletID      uuid.UUID        `json:"wallet_id"`
	PaymentID     uuid.UUID        `json:"payment_id"`
	AdminID       *uuid.UUID       `json:"admin_id,omitempty"`
	Montant       decimal.Decimal  `json:"montant"`
	Frais         decimal.Decimal  `json:"frais"`
	Status        WithdrawalStatus `json:"status"`
	StatusHistory []StatusEntry    `json:"status_history"`
	Proof         *string          `json:"proof,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewWithdrawal builds a waiting withdrawal for a gross requested amount.
func NewWithdrawal(walletID, paymentID uuid.UUID, gross, fee decimal.Decimal, now time.Time) *Withdrawal {
	return &Withdrawal{
		ID:        uuid.New(),
		WalletID:  walletID,
		PaymentID: paymentID,
		Montant:   gross.Sub(fee),
		Frais:     fee,
		Status:    WithdrawalStatusWaiting,
		StatusHistory: []StatusEntry{
			{Status: WithdrawalStatusWaiting, Date: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Gross is the total debited from the wallet.
func (w *Withdrawal) Gross() decimal.Decimal {
	return w.Montant.Add(w.Frais)
}

// CanTransition reports whether moving to `to` is a legal edge.
func (w *Withdrawal) CanTransition(to WithdrawalStatus) error {
	if w.Status.IsTerminal() {
		return apperror.ErrWithdrawalTerminal()
	}
	if !to.Valid() {
		return apperror.Validation("Unknown withdrawal status")
	}
	if to == WithdrawalStatusRejected {
		return nil
	}
	if withdrawalRank[to] <= withdrawalRank[w.Status] {
		return apperror.ErrIllegalTransition(string(w.Status), string(to))
	}
	return nil
}

// Transition applies a legal status change and appends it to the history.
// It returns true when the change requires refunding the wallet.
func (w *Withdrawal) Transition(to WithdrawalStatus, note string, now time.Time) (bool, error) {
	if err := w.CanTransition(to); err != nil {
		return false, err
	}
	w.Status = to
	w.StatusHistory = append(w.StatusHistory, StatusEntry{Status: to, Date: now, Note: note})
	w.UpdatedAt = now
	return to == WithdrawalStatusRejected, nil
}
