package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerService_ConcurrentWithdrawals fires more debits than the balance
// covers at one wallet. Exactly as many as the balance allows must succeed.
func TestLedgerService_ConcurrentWithdrawals(t *testing.T) {
	s := newMemServices()
	w := s.db.addWallet(uuid.New(), "500", true)

	const concurrency = 100
	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
		fundsCount   atomic.Int32
		otherCount   atomic.Int32
	)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Withdraw(context.Background(), ports.MoneyRequest{
				WalletIdentifier: w.ID.String(),
				Amount:           dec("10"),
				Actor:            uuid.New(),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case apperror.CodeOf(err) == "FUND_001":
				fundsCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), successCount.Load())
	assert.Equal(t, int32(50), fundsCount.Load())
	assert.Equal(t, int32(0), otherCount.Load())
	assert.True(t, s.db.wallets[w.ID].Solde.IsZero(), "solde = %s", s.db.wallets[w.ID].Solde)
	assertConserved(t, s.db, w.ID)
}

// TestLedgerService_ConcurrentMixedOperations interleaves deposits,
// withdrawals and cancellations and checks the balance still equals the
// sum of active transfers.
func TestLedgerService_ConcurrentMixedOperations(t *testing.T) {
	s := newMemServices()
	w := s.db.addWallet(uuid.New(), "100", true)
	ctx := context.Background()

	// seed transfers to cancel concurrently
	var seeded []uuid.UUID
	for i := 0; i < 10; i++ {
		tr, err := s.ledger.Deposit(ctx, ports.MoneyRequest{WalletIdentifier: w.Key, Amount: dec("5"), Actor: uuid.New()})
		require.NoError(t, err)
		seeded = append(seeded, tr.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = s.ledger.Deposit(ctx, ports.MoneyRequest{WalletIdentifier: w.Key, Amount: dec("7.25"), Actor: uuid.New()})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.ledger.Withdraw(ctx, ports.MoneyRequest{WalletIdentifier: w.Key, Amount: dec("12.5"), Actor: uuid.New()})
		}()
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = s.ledger.CancelTransfer(ctx, id)
		}(seeded[i%len(seeded)])
	}
	wg.Wait()

	// cancels are not gated on balance, so only conservation is checked here
	final := s.db.wallets[w.ID]
	assert.True(t, final.Solde.Equal(s.db.activeSum(w.ID)), "solde %s != ledger %s", final.Solde, s.db.activeSum(w.ID))
}
