package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// attempts per store when a generated key collides with an existing one
const walletKeyAttempts = 3

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	storeRepo    ports.StoreRepository
	transferRepo ports.TransferRepository
	transactor   ports.Transactor
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	storeRepo ports.StoreRepository,
	transferRepo ports.TransferRepository,
	transactor ports.Transactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		storeRepo:    storeRepo,
		transferRepo: transferRepo,
		transactor:   transactor,
		log:          log,
	}
}

// CreateMissingWallets gives every store without a wallet an inactive, empty one.
// Safe to call repeatedly: the unique index on wallets.store_id rejects duplicates.
func (s *WalletServiceImpl) CreateMissingWallets(ctx context.Context) (int, error) {
	stores, err := s.storeRepo.ListWithoutWallet(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stores without wallet: %w", err))
	}

	created := 0
	for _, store := range stores {
		ok, err := s.createWallet(ctx, store.ID)
		if err != nil {
			return created, apperror.InternalError(err)
		}
		if ok {
			created++
		}
	}

	s.log.Info().Int("created", created).Int("candidates", len(stores)).Msg("missing wallets created")
	return created, nil
}

// createWallet returns false when another writer created the store's wallet first.
func (s *WalletServiceImpl) createWallet(ctx context.Context, storeID uuid.UUID) (bool, error) {
	for attempt := 0; attempt < walletKeyAttempts; attempt++ {
		wallet, err := domain.NewWallet(storeID, time.Now().UTC())
		if err != nil {
			return false, err
		}
		err = s.walletRepo.Create(ctx, wallet)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ports.ErrDuplicate) {
			return false, fmt.Errorf("create wallet for store %s: %w", storeID, err)
		}

		existing, err := s.walletRepo.GetByStoreID(ctx, storeID)
		if err != nil {
			return false, fmt.Errorf("check wallet for store %s: %w", storeID, err)
		}
		if existing != nil {
			return false, nil
		}
		// key collision, try a fresh key
	}
	return false, fmt.Errorf("create wallet for store %s: key collisions exhausted", storeID)
}

// FindByIdentifier accepts an internal id or a wallet key.
func (s *WalletServiceImpl) FindByIdentifier(ctx context.Context, identifier string) (*domain.Wallet, error) {
	return findWallet(ctx, s.walletRepo, identifier)
}

// GetByStore returns the wallet of a store.
func (s *WalletServiceImpl) GetByStore(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByStoreID(ctx, storeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by store: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// List returns a page of wallets.
func (s *WalletServiceImpl) List(ctx context.Context, params ports.WalletListParams) ([]domain.Wallet, int64, error) {
	wallets, total, err := s.walletRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, total, nil
}

// CheckAccess allows admins everywhere and clients on wallets of stores they own.
func (s *WalletServiceImpl) CheckAccess(ctx context.Context, principal domain.Principal, wallet *domain.Wallet) error {
	if principal.IsAdmin() {
		return nil
	}
	if principal.Role != domain.RoleClient {
		return apperror.ErrForbidden()
	}
	store, err := s.storeRepo.GetByID(ctx, wallet.StoreID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get store: %w", err))
	}
	if store == nil || store.ClientID != principal.ID {
		return apperror.ErrForbidden()
	}
	return nil
}

// ToggleActive flips the active flag. The balance is untouched.
func (s *WalletServiceImpl) ToggleActive(ctx context.Context, identifier string) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		w, err := lockWallet(ctx, s.walletRepo, identifier)
		if err != nil {
			return err
		}
		w.Active = !w.Active
		w.UpdatedAt = time.Now().UTC()
		if err := s.walletRepo.Update(ctx, w); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	s.log.Info().Str("wallet_id", wallet.ID.String()).Bool("active", wallet.Active).Msg("wallet active flag toggled")
	return wallet, nil
}

// ResetToInitial zeroes the balance and deactivates the wallet. A non-zero
// balance is written off with a reversing transfer first.
func (s *WalletServiceImpl) ResetToInitial(ctx context.Context, identifier string, actor uuid.UUID) (*domain.Wallet, error) {
	var (
		wallet   *domain.Wallet
		previous string
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		w, err := lockWallet(ctx, s.walletRepo, identifier)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		previous = w.Solde.String()

		if !w.Solde.IsZero() {
			reversal := domain.NewTransfer(w.ID, domain.TransferTypeManualWithdrawal, w.Solde.Neg(), now)
			reversal.AdminID = &actor
			desc := "reset to initial, previous balance " + previous
			reversal.Description = &desc
			if err := s.transferRepo.Create(ctx, reversal); err != nil {
				return fmt.Errorf("create reset transfer: %w", err)
			}
			w.Apply(reversal.Montant)
		}

		w.Active = false
		w.UpdatedAt = now
		if err := s.walletRepo.Update(ctx, w); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("actor", actor.String()).
		Str("previous_solde", previous).
		Msg("wallet reset to initial")
	return wallet, nil
}
