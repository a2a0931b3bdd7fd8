package service

import (
	"context"
	"encoding/json"
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

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo     ports.WalletRepository
	transferRepo   ports.TransferRepository
	parcelRepo     ports.ParcelRepository
	idempRepo      ports.IdempotencyRepository
	idempCache     ports.IdempotencyCache
	transactor     ports.Transactor
	idempotencyTTL time.Duration
	log            zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	transferRepo ports.TransferRepository,
	parcelRepo ports.ParcelRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.Transactor,
	idempotencyTTL time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:     walletRepo,
		transferRepo:   transferRepo,
		parcelRepo:     parcelRepo,
		idempRepo:      idempRepo,
		idempCache:     idempCache,
		transactor:     transactor,
		idempotencyTTL: idempotencyTTL,
		log:            log,
	}
}

// Deposit credits an active wallet with a Manuel Depot transfer.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.MoneyRequest) (*domain.Transfer, error) {
	transfer, err := s.moveMoney(ctx, "deposit", req, func(w *domain.Wallet) (*domain.Transfer, error) {
		return domain.NewTransfer(w.ID, domain.TransferTypeManualDeposit, req.Amount, time.Now().UTC()), nil
	})
	metrics.RecordLedgerOperation("deposit", err, req.Amount)
	return transfer, err
}

// Withdraw debits an active wallet with a Manuel Withdrawal transfer.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, req ports.MoneyRequest) (*domain.Transfer, error) {
	transfer, err := s.moveMoney(ctx, "withdraw", req, func(w *domain.Wallet) (*domain.Transfer, error) {
		if !w.CanDebit(req.Amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return domain.NewTransfer(w.ID, domain.TransferTypeManualWithdrawal, req.Amount.Neg(), time.Now().UTC()), nil
	})
	metrics.RecordLedgerOperation("withdraw", err, req.Amount)
	return transfer, err
}

// errKeyAlreadyUsed aborts a scope whose idempotency record lost the race
// against a concurrent request with the same key.
var errKeyAlreadyUsed = errors.New("idempotency key already used")

// moveMoney runs the shared admin deposit/withdraw flow: idempotency lookup,
// wallet lock, transfer write, balance write, cache fill. The idempotency
// record is written in the same scope as the transfer, so of two concurrent
// requests with one key only the first commits and the other replays it.
func (s *LedgerServiceImpl) moveMoney(
	ctx context.Context,
	op string,
	req ports.MoneyRequest,
	build func(w *domain.Wallet) (*domain.Transfer, error),
) (*domain.Transfer, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.IsCents(req.Amount) {
		return nil, apperror.ErrAmountPrecision()
	}

	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = idempotencyKey(op, req.Actor, req.IdempotencyKey)

		// Layer 1: Redis
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling back to db")
		}
		if cached != nil {
			return unmarshalCachedTransfer(cached)
		}

		// Layer 2: DB
		replayed, err := s.replayStored(ctx, op, req)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	var (
		transfer *domain.Transfer
		respJSON []byte
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := lockWallet(ctx, s.walletRepo, req.WalletIdentifier)
		if err != nil {
			return err
		}
		if !wallet.Active {
			return apperror.ErrWalletInactive()
		}

		t, err := build(wallet)
		if err != nil {
			return err
		}
		t.AdminID = &req.Actor

		if err := s.transferRepo.Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		wallet.Apply(t.Montant)
		wallet.UpdatedAt = t.CreatedAt
		if err := s.walletRepo.Update(ctx, wallet); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}

		if idempKey != "" {
			if respJSON, err = json.Marshal(t); err != nil {
				return fmt.Errorf("marshal transfer: %w", err)
			}
			err = s.idempRepo.Create(ctx, &domain.IdempotencyRecord{
				Operation:  op,
				ActorID:    req.Actor,
				Key:        req.IdempotencyKey,
				TransferID: t.ID,
				Response:   respJSON,
				CreatedAt:  t.CreatedAt,
			})
			if errors.Is(err, ports.ErrDuplicate) {
				return errKeyAlreadyUsed
			}
			if err != nil {
				return fmt.Errorf("create idempotency record: %w", err)
			}
		}
		transfer = t
		return nil
	})
	if errors.Is(err, errKeyAlreadyUsed) {
		s.log.Info().Str("key", idempKey).Msg("concurrent request with same idempotency key, replaying")
		replayed, err := s.replayStored(ctx, op, req)
		if err == nil && replayed == nil {
			err = apperror.InternalError(fmt.Errorf("idempotency record %s vanished", idempKey))
		}
		return replayed, err
	}
	if err != nil {
		return nil, txError(err)
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, s.idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("op", op).
		Str("transfer_id", transfer.ID.String()).
		Str("wallet_id", transfer.WalletID.String()).
		Str("montant", transfer.Montant.String()).
		Str("actor", req.Actor.String()).
		Msg("wallet balance moved")

	return transfer, nil
}

// replayStored returns the transfer recorded for req's idempotency key, or
// nil when the key has not been used.
func (s *LedgerServiceImpl) replayStored(ctx context.Context, op string, req ports.MoneyRequest) (*domain.Transfer, error) {
	rec, err := s.idempRepo.Get(ctx, op, req.Actor, req.IdempotencyKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec == nil {
		return nil, nil
	}
	return unmarshalCachedTransfer(rec.Response)
}

// CancelTransfer sets a transfer to annuler, removes its effect from the wallet
// and clears the parcel's wallet-processed flag, all in one scope.
func (s *LedgerServiceImpl) CancelTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.changeStatus(ctx, id, domain.TransferStatusCancelled, false)
	metrics.RecordLedgerOperation("cancel", err, decimal.Zero)
	return transfer, err
}

// ValidateTransfer restores a transfer's effect on the wallet and marks the
// parcel as processed. Re-validating a debit that would leave the wallet
// negative fails with insufficient funds.
func (s *LedgerServiceImpl) ValidateTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.changeStatus(ctx, id, domain.TransferStatusValidated, true)
	metrics.RecordLedgerOperation("validate", err, decimal.Zero)
	return transfer, err
}

func (s *LedgerServiceImpl) changeStatus(ctx context.Context, id uuid.UUID, to domain.TransferStatus, processed bool) (*domain.Transfer, error) {
	var (
		transfer *domain.Transfer
		delta    decimal.Decimal
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, id)
		if err != nil {
			return err
		}
		wallet, err := lockWalletByID(ctx, s.walletRepo, t.WalletID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		delta, err = t.Transition(to, now)
		if err != nil {
			return err
		}
		// re-validating a debit must not overdraw; cancelling is never gated
		if to == domain.TransferStatusValidated && wallet.Solde.Add(delta).IsNegative() {
			return apperror.ErrInsufficientFunds()
		}

		if err := s.transferRepo.Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		wallet.Apply(delta)
		wallet.UpdatedAt = now
		if err := s.walletRepo.Update(ctx, wallet); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		if t.ColisID != nil {
			if err := s.parcelRepo.SetWalletProcessed(ctx, *t.ColisID, processed); err != nil {
				return fmt.Errorf("set parcel wallet processed: %w", err)
			}
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("status", string(transfer.Status)).
		Str("delta", delta.String()).
		Msg("transfer status changed")
	return transfer, nil
}

// CorrectTransfer replaces the amount of a validated transfer and applies the
// difference to the wallet. A downward correction may not leave the wallet
// negative; an upward one is always allowed.
func (s *LedgerServiceImpl) CorrectTransfer(ctx context.Context, req ports.CorrectionRequest) (*domain.Transfer, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, apperror.ErrDescriptionRequired()
	}
	if !domain.IsCents(req.NewAmount) {
		return nil, apperror.ErrAmountPrecision()
	}

	var (
		transfer   *domain.Transfer
		difference decimal.Decimal
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, req.TransferID)
		if err != nil {
			return err
		}
		wallet, err := lockWalletByID(ctx, s.walletRepo, t.WalletID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		difference, err = t.Correct(req.NewAmount, req.Description, now)
		if err != nil {
			return err
		}
		if difference.IsNegative() && wallet.Solde.Add(difference).IsNegative() {
			return apperror.ErrInsufficientFunds()
		}

		if err := s.transferRepo.Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		wallet.Apply(difference)
		wallet.UpdatedAt = now
		if err := s.walletRepo.Update(ctx, wallet); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		transfer = t
		return nil
	})
	metrics.RecordLedgerOperation("correct", err, difference)
	if err != nil {
		return nil, txError(err)
	}

	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("difference", difference.String()).
		Str("actor", req.Actor.String()).
		Msg("transfer corrected")
	return transfer, nil
}

func (s *LedgerServiceImpl) lockTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	t, err := s.transferRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock transfer: %w", err)
	}
	if t == nil {
		return nil, apperror.ErrTransferNotFound()
	}
	return t, nil
}

// GetTransfer returns one transfer.
func (s *LedgerServiceImpl) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	t, err := s.transferRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transfer: %w", err))
	}
	if t == nil {
		return nil, apperror.ErrTransferNotFound()
	}
	return t, nil
}

// ListTransfers returns a page of transfers.
func (s *LedgerServiceImpl) ListTransfers(ctx context.Context, params ports.TransferListParams) ([]domain.Transfer, int64, error) {
	transfers, total, err := s.transferRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transfers: %w", err))
	}
	return transfers, total, nil
}

// DeleteTransfer physically removes a transfer without touching the balance.
// Reconcile reports the drift this leaves behind.
func (s *LedgerServiceImpl) DeleteTransfer(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	t, err := s.GetTransfer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.transferRepo.Delete(ctx, id); err != nil {
		return apperror.InternalError(fmt.Errorf("delete transfer: %w", err))
	}

	s.log.Warn().
		Str("transfer_id", id.String()).
		Str("wallet_id", t.WalletID.String()).
		Str("montant", t.Montant.String()).
		Str("status", string(t.Status)).
		Str("actor", actor.String()).
		Msg("transfer deleted without balance adjustment")
	return nil
}

// Reconcile compares the cached balance with the sum of active transfers.
func (s *LedgerServiceImpl) Reconcile(ctx context.Context, walletIdentifier string) (*ports.Reconciliation, error) {
	wallet, err := findWallet(ctx, s.walletRepo, walletIdentifier)
	if err != nil {
		return nil, err
	}
	sum, err := s.transferRepo.SumActive(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum active transfers: %w", err))
	}

	drift := wallet.Solde.Sub(sum)
	rec := &ports.Reconciliation{
		WalletID:   wallet.ID,
		Solde:      wallet.Solde,
		LedgerSum:  sum,
		Drift:      drift,
		Consistent: drift.IsZero(),
	}
	if !rec.Consistent {
		s.log.Warn().
			Str("wallet_id", wallet.ID.String()).
			Str("solde", wallet.Solde.String()).
			Str("ledger_sum", sum.String()).
			Msg("wallet balance drifted from ledger")
	}
	return rec, nil
}

func idempotencyKey(op string, actor uuid.UUID, key string) string {
	return op + ":" + actor.String() + ":" + key
}

func unmarshalCachedTransfer(data []byte) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transfer: %w", err))
	}
	return &t, nil
}
