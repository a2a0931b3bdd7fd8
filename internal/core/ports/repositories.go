package ports

import (
	"context"
	"errors"
	"time"

	"eromax-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// ErrDuplicate is returned by repositories when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// ErrCodeTaken is returned when a generated human-readable code collides with
// an existing one. The caller retries with a fresh code.
var ErrCodeTaken = errors.New("code already taken")

// Transactor runs a function inside one atomic database scope.
// The scope travels in the context; a nested call joins the caller's scope
// instead of opening a second one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WalletRepository defines persistence operations for wallets.
// ForUpdate variants lock the row and must be called inside WithinTx.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByKey(ctx context.Context, key string) (*domain.Wallet, error)
	GetByStoreID(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByStoreIDForUpdate(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error)
	Update(ctx context.Context, wallet *domain.Wallet) error
	List(ctx context.Context, params WalletListParams) ([]domain.Wallet, int64, error)
}

// WalletListParams holds filter + pagination for listing wallets.
type WalletListParams struct {
	Scope    domain.ScopeFilter
	StoreID  *uuid.UUID
	Active   *bool
	Query    string // matches wallet key or store name
	Page     int
	PageSize int
}

// TransferRepository defines persistence operations for ledger entries.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	Update(ctx context.Context, transfer *domain.Transfer) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params TransferListParams) ([]domain.Transfer, int64, error)
	SumActive(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

// TransferListParams holds filter + pagination for listing transfers.
type TransferListParams struct {
	Scope    domain.ScopeFilter
	WalletID *uuid.UUID
	StoreID  *uuid.UUID
	Status   *domain.TransferStatus
	Type     *domain.TransferType
	From     *time.Time
	To       *time.Time
	Query    string // matches wallet key or parcel tracking code
	Page     int
	PageSize int
}

// WithdrawalRepository defines persistence operations for payout requests.
type WithdrawalRepository interface {
	// Create returns ErrDuplicate when an identical non-terminal request exists.
	Create(ctx context.Context, withdrawal *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	Update(ctx context.Context, withdrawal *domain.Withdrawal) error
	List(ctx context.Context, params WithdrawalListParams) ([]domain.Withdrawal, int64, error)
}

// WithdrawalListParams holds filter + pagination for listing withdrawals.
type WithdrawalListParams struct {
	Scope    domain.ScopeFilter
	WalletID *uuid.UUID
	StoreID  *uuid.UUID
	Status   *domain.WithdrawalStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// StoreRepository reads stores owned by clients.
type StoreRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Store, error)
	ListWithoutWallet(ctx context.Context) ([]domain.Store, error)
}

// PaymentRepository reads client payout methods.
type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

// ParcelRepository reads parcels and flips their wallet-processed flag.
type ParcelRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Colis, error)
	SetWalletProcessed(ctx context.Context, id uuid.UUID, processed bool) error
	// ListSettleable returns Livrée and Refusée parcels whose outcome falls in [from, to).
	ListSettleable(ctx context.Context, from, to time.Time) ([]domain.Colis, error)
	// ListPickedUp returns Ramassée parcels whose pickup falls in [from, to).
	ListPickedUp(ctx context.Context, from, to time.Time) ([]domain.Colis, error)
}

// InvoiceRepository persists settlement invoices and their parcel links.
type InvoiceRepository interface {
	IsInvoiced(ctx context.Context, colisID uuid.UUID, typ domain.FactureType) (bool, error)
	IsPickupInvoiced(ctx context.Context, colisID uuid.UUID) (bool, error)
	// CreateFacture returns ErrDuplicate when any parcel is already linked to an
	// invoice of the same type, and ErrCodeTaken when the invoice code is in use.
	CreateFacture(ctx context.Context, facture *domain.Facture) error
	CreateFactureRamasser(ctx context.Context, facture *domain.FactureRamasser) error
}

// IdempotencyRepository persists admin operation results by Idempotency-Key.
// Create runs inside the operation's scope and returns ErrDuplicate when the
// key was already recorded, so two concurrent submissions commit once.
type IdempotencyRepository interface {
	Create(ctx context.Context, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, operation string, actorID uuid.UUID, key string) (*domain.IdempotencyRecord, error)
}

// NotificationRepository stores notifications for stores.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
}
