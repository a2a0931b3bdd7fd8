package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"
	"eromax-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	walletRepo     ports.WalletRepository
	transferRepo   ports.TransferRepository
	withdrawalRepo ports.WithdrawalRepository
	storeRepo      ports.StoreRepository
	paymentRepo    ports.PaymentRepository
	transactor     ports.Transactor
	fee            decimal.Decimal
	minimum        decimal.Decimal
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl. fee is charged on
// every request; minimum applies to the gross requested amount.
func NewWithdrawalService(
	walletRepo ports.WalletRepository,
	transferRepo ports.TransferRepository,
	withdrawalRepo ports.WithdrawalRepository,
	storeRepo ports.StoreRepository,
	paymentRepo ports.PaymentRepository,
	transactor ports.Transactor,
	fee, minimum decimal.Decimal,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		walletRepo:     walletRepo,
		transferRepo:   transferRepo,
		withdrawalRepo: withdrawalRepo,
		storeRepo:      storeRepo,
		paymentRepo:    paymentRepo,
		transactor:     transactor,
		fee:            fee,
		minimum:        minimum,
		log:            log,
	}
}

// Create opens a client withdrawal in status waiting.
func (s *WithdrawalServiceImpl) Create(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
	return s.create(ctx, req, false)
}

// CreateAdmin opens a pre-approved withdrawal in status processing.
func (s *WithdrawalServiceImpl) CreateAdmin(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
	return s.create(ctx, req, true)
}

func (s *WithdrawalServiceImpl) create(ctx context.Context, req ports.WithdrawalRequest, admin bool) (*domain.Withdrawal, error) {
	if req.Montant.LessThan(s.minimum) {
		return nil, apperror.ErrBelowMinimumWithdrawal(s.minimum.String())
	}
	if !domain.IsCents(req.Montant) {
		return nil, apperror.ErrAmountPrecision()
	}
	if admin && !req.Actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}

	// Ownership checks before opening the scope
	wallet, err := findWallet(ctx, s.walletRepo, req.WalletIdentifier)
	if err != nil {
		return nil, err
	}
	store, err := s.storeRepo.GetByID(ctx, wallet.StoreID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get store: %w", err))
	}
	if store == nil {
		return nil, apperror.ErrNotFound("store")
	}
	if !admin && (req.Actor.Role != domain.RoleClient || store.ClientID != req.Actor.ID) {
		return nil, apperror.ErrForbidden()
	}
	payment, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	if !payment.BelongsTo(store.ClientID) {
		return nil, apperror.ErrPaymentNotOwned()
	}

	var withdrawal *domain.Withdrawal
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		w, err := lockWalletByID(ctx, s.walletRepo, wallet.ID)
		if err != nil {
			return err
		}
		if !w.Active {
			return apperror.ErrWalletInactive()
		}
		if !w.CanDebit(req.Montant) {
			return apperror.ErrInsufficientFunds()
		}

		now := time.Now().UTC()
		wd := domain.NewWithdrawal(w.ID, payment.ID, req.Montant, s.fee, now)
		debit := domain.NewTransfer(w.ID, domain.TransferTypeWithdrawal, req.Montant.Neg(), now)
		if admin {
			actor := req.Actor.ID
			wd.AdminID = &actor
			debit.AdminID = &actor
			if _, err := wd.Transition(domain.WithdrawalStatusProcessing, "", now); err != nil {
				return err
			}
		}
		desc := "withdrawal " + wd.ID.String()
		debit.Description = &desc

		if err := s.withdrawalRepo.Create(ctx, wd); err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return apperror.ErrDuplicateWithdrawal()
			}
			return fmt.Errorf("create withdrawal: %w", err)
		}
		if err := s.transferRepo.Create(ctx, debit); err != nil {
			return fmt.Errorf("create withdrawal transfer: %w", err)
		}
		w.Apply(debit.Montant)
		w.UpdatedAt = now
		if err := s.walletRepo.Update(ctx, w); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		withdrawal = wd
		return nil
	})
	metrics.RecordLedgerOperation("withdrawal_create", err, req.Montant)
	if err != nil {
		return nil, txError(err)
	}
	metrics.RecordWithdrawalTransition(string(withdrawal.Status))

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("wallet_id", withdrawal.WalletID.String()).
		Str("montant", withdrawal.Montant.String()).
		Str("frais", withdrawal.Frais.String()).
		Str("status", string(withdrawal.Status)).
		Str("actor", req.Actor.ID.String()).
		Msg("withdrawal created")
	return withdrawal, nil
}

// UpdateStatus moves a withdrawal along its workflow. Rejecting refunds the
// gross amount to the wallet in the same scope.
func (s *WithdrawalServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus, note string) (*domain.Withdrawal, error) {
	if !status.Valid() {
		return nil, apperror.Validation("Unknown withdrawal status")
	}

	var (
		withdrawal *domain.Withdrawal
		refunded   bool
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		wd, err := s.lockWithdrawal(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		refund, err := wd.Transition(status, strings.TrimSpace(note), now)
		if err != nil {
			return err
		}
		if err := s.withdrawalRepo.Update(ctx, wd); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}

		if refund {
			wallet, err := lockWalletByID(ctx, s.walletRepo, wd.WalletID)
			if err != nil {
				return err
			}
			credit := domain.NewTransfer(wallet.ID, domain.TransferTypeManualDeposit, wd.Gross(), now)
			credit.AdminID = wd.AdminID
			desc := "refund of rejected withdrawal " + wd.ID.String()
			credit.Description = &desc
			if err := s.transferRepo.Create(ctx, credit); err != nil {
				return fmt.Errorf("create refund transfer: %w", err)
			}
			wallet.Apply(credit.Montant)
			wallet.UpdatedAt = now
			if err := s.walletRepo.Update(ctx, wallet); err != nil {
				return fmt.Errorf("update wallet: %w", err)
			}
		}
		withdrawal, refunded = wd, refund
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	metrics.RecordWithdrawalTransition(string(status))

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("status", string(withdrawal.Status)).
		Bool("refunded", refunded).
		Msg("withdrawal status updated")
	return withdrawal, nil
}

// AttachProof stores a receipt reference. No balance effect.
func (s *WithdrawalServiceImpl) AttachProof(ctx context.Context, id uuid.UUID, proof string) (*domain.Withdrawal, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, apperror.Validation("Proof reference is required")
	}

	var withdrawal *domain.Withdrawal
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		wd, err := s.lockWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		wd.Proof = &proof
		wd.UpdatedAt = time.Now().UTC()
		if err := s.withdrawalRepo.Update(ctx, wd); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		withdrawal = wd
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	return withdrawal, nil
}

func (s *WithdrawalServiceImpl) lockWithdrawal(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	wd, err := s.withdrawalRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock withdrawal: %w", err)
	}
	if wd == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	return wd, nil
}

// Get returns one withdrawal.
func (s *WithdrawalServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	wd, err := s.withdrawalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if wd == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	return wd, nil
}

// List returns a page of withdrawals.
func (s *WithdrawalServiceImpl) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.Withdrawal, int64, error) {
	withdrawals, total, err := s.withdrawalRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return withdrawals, total, nil
}
