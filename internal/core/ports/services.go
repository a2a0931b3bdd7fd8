package ports

import (
	"context"
	"time"

	"eromax-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// TokenService handles JWT token operations. Principals authenticate
// elsewhere; Generate exists for operator tooling and tests.
type TokenService interface {
	Generate(principal domain.Principal) (string, time.Time, error)
	Validate(tokenString string) (*domain.Principal, error)
}

// IdempotencyCache remembers the result of an admin money operation by key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// JobLock keeps two instances from running the same batch at once.
type JobLock interface {
	// Acquire returns false if the lock is already held.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Notifier delivers a store notification. Failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, storeID uuid.UUID, title, description string)
}

// --- Service Ports (Business Logic) ---

// WalletService manages the wallet records themselves.
type WalletService interface {
	CreateMissingWallets(ctx context.Context) (int, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Wallet, error)
	GetByStore(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error)
	List(ctx context.Context, params WalletListParams) ([]domain.Wallet, int64, error)
	CheckAccess(ctx context.Context, principal domain.Principal, wallet *domain.Wallet) error
	ToggleActive(ctx context.Context, identifier string) (*domain.Wallet, error)
	ResetToInitial(ctx context.Context, identifier string, actor uuid.UUID) (*domain.Wallet, error)
}

// LedgerService holds the balance-moving transfer operations.
type LedgerService interface {
	Deposit(ctx context.Context, req MoneyRequest) (*domain.Transfer, error)
	Withdraw(ctx context.Context, req MoneyRequest) (*domain.Transfer, error)
	CancelTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	// ValidateTransfer refuses to re-validate a debit that would overdraw the wallet.
	ValidateTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	CorrectTransfer(ctx context.Context, req CorrectionRequest) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	ListTransfers(ctx context.Context, params TransferListParams) ([]domain.Transfer, int64, error)
	DeleteTransfer(ctx context.Context, id uuid.UUID, actor uuid.UUID) error
	Reconcile(ctx context.Context, walletIdentifier string) (*Reconciliation, error)
}

// MoneyRequest holds validated input for an admin deposit or withdrawal.
type MoneyRequest struct {
	WalletIdentifier string
	Amount           decimal.Decimal
	Actor            uuid.UUID
	IdempotencyKey   string // optional
}

// CorrectionRequest holds validated input for correcting a transfer.
type CorrectionRequest struct {
	TransferID  uuid.UUID
	NewAmount   decimal.Decimal
	Description string
	Actor       uuid.UUID
}

// Reconciliation compares a wallet's cached balance with its ledger.
type Reconciliation struct {
	WalletID   uuid.UUID       `json:"wallet_id"`
	Solde      decimal.Decimal `json:"solde"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Drift      decimal.Decimal `json:"drift"`
	Consistent bool            `json:"consistent"`
}

// WithdrawalService drives the payout workflow.
type WithdrawalService interface {
	Create(ctx context.Context, req WithdrawalRequest) (*domain.Withdrawal, error)
	CreateAdmin(ctx context.Context, req WithdrawalRequest) (*domain.Withdrawal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus, note string) (*domain.Withdrawal, error)
	AttachProof(ctx context.Context, id uuid.UUID, proof string) (*domain.Withdrawal, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	List(ctx context.Context, params WithdrawalListParams) ([]domain.Withdrawal, int64, error)
}

// WithdrawalRequest holds validated input for creating a withdrawal.
type WithdrawalRequest struct {
	WalletIdentifier string
	PaymentID        uuid.UUID
	Montant          decimal.Decimal // gross amount debited from the wallet
	Actor            domain.Principal
}

// SettlementService runs the end-of-day invoice jobs.
type SettlementService interface {
	RunDaily(ctx context.Context, day time.Time) (*SettlementRun, error)
	RunPickups(ctx context.Context, day time.Time) (*SettlementRun, error)
}

// SettlementRun summarizes one job execution.
type SettlementRun struct {
	Job      string          `json:"job"`
	Day      time.Time       `json:"day"`
	Groups   int             `json:"groups"`
	Invoices int             `json:"invoices"`
	Skipped  int             `json:"skipped"` // parcels already invoiced
	Failed   int             `json:"failed"`  // groups rolled back
	Credited decimal.Decimal `json:"credited"`
	Busy     bool            `json:"busy"` // another instance held the lock
}
