package service

import (
	"context"
	"errors"
	"fmt"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// txError maps an error escaping WithinTx. Business rule errors pass through
// unchanged; anything else means the atomic scope could not commit.
func txError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.ErrTransactionFailure(err)
}

// findWallet resolves a wallet by internal id or human-readable key.
func findWallet(ctx context.Context, repo ports.WalletRepository, identifier string) (*domain.Wallet, error) {
	var (
		wallet *domain.Wallet
		err    error
	)
	if domain.IsWalletKey(identifier) {
		wallet, err = repo.GetByKey(ctx, identifier)
	} else {
		id, parseErr := uuid.Parse(identifier)
		if parseErr != nil {
			return nil, apperror.ErrInvalidIdentifier("wallet")
		}
		wallet, err = repo.GetByID(ctx, id)
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// lockWallet resolves an identifier and locks the wallet row. Must run inside WithinTx.
func lockWallet(ctx context.Context, repo ports.WalletRepository, identifier string) (*domain.Wallet, error) {
	wallet, err := findWallet(ctx, repo, identifier)
	if err != nil {
		return nil, err
	}
	return lockWalletByID(ctx, repo, wallet.ID)
}

func lockWalletByID(ctx context.Context, repo ports.WalletRepository, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}
