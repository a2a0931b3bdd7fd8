package dto

import (
	"github.com/shopspring/decimal"
)

// WalletURI binds the :id path segment of wallet routes (internal id or key).
type WalletURI struct {
	ID string `uri:"id" binding:"required,wallet_ident"`
}

// IDURI binds a :id path segment that must be a UUID.
type IDURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// MoneyRequest is the request body for an admin deposit or withdrawal.
type MoneyRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

// CorrectionRequest is the request body for correcting a transfer amount.
type CorrectionRequest struct {
	NewAmount   *decimal.Decimal `json:"new_amount" binding:"required"`
	Description string           `json:"description" binding:"required,max=500"`
}

// CreateWithdrawalRequest is the request body for a withdrawal. Montant is
// the gross amount taken from the wallet.
type CreateWithdrawalRequest struct {
	Wallet    string           `json:"wallet" binding:"required,wallet_ident"`
	PaymentID string           `json:"payment_id" binding:"required,uuid"`
	Montant   *decimal.Decimal `json:"montant" binding:"required"`
}

// UpdateWithdrawalStatusRequest is the request body for a workflow move.
type UpdateWithdrawalStatusRequest struct {
	Status string `json:"status" binding:"required,withdrawal_status"`
	Note   string `json:"note" binding:"max=500"`
}

// AttachProofRequest is the request body for attaching a payout receipt.
type AttachProofRequest struct {
	Proof string `json:"proof" binding:"required,max=512"`
}

// SettlementQuery selects the day a manual settlement run covers.
type SettlementQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// Pagination is shared by every list endpoint.
type Pagination struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Normalize fills in defaults.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

// DateRange is an optional [from, to] filter on creation dates.
type DateRange struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// WalletListQuery filters GET /wallets.
type WalletListQuery struct {
	Pagination
	StoreID string `form:"store_id" binding:"omitempty,uuid"`
	Active  *bool  `form:"active"`
	Q       string `form:"q" binding:"max=100"`
}

// TransferListQuery filters GET /transfers.
type TransferListQuery struct {
	Pagination
	DateRange
	WalletID string `form:"wallet_id" binding:"omitempty,uuid"`
	StoreID  string `form:"store_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,transfer_status"`
	Type     string `form:"type" binding:"omitempty,transfer_type"`
	Q        string `form:"q" binding:"max=100"`
}

// WithdrawalListQuery filters GET /withdrawals.
type WithdrawalListQuery struct {
	Pagination
	DateRange
	WalletID string `form:"wallet_id" binding:"omitempty,uuid"`
	StoreID  string `form:"store_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,withdrawal_status"`
}

// CreateWalletsResponse reports a wallet sync run.
type CreateWalletsResponse struct {
	Created int `json:"created"`
}
