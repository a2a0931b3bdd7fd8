package service

import (
	"context"
	"testing"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type withdrawalFixture struct {
	s       *memServices
	wallet  domain.Wallet
	client  domain.Principal
	payment domain.Payment
}

func newWithdrawalFixture(solde string, active bool) *withdrawalFixture {
	s := newMemServices()
	client := domain.Principal{ID: uuid.New(), Role: domain.RoleClient}
	store := domain.Store{ID: uuid.New(), ClientID: client.ID, Name: "Atlas Shop"}
	payment := domain.Payment{ID: uuid.New(), ClientID: client.ID, Bank: "CIH", RIB: "230780000000000000000001"}
	s.db.stores[store.ID] = store
	s.db.payments[payment.ID] = payment
	return &withdrawalFixture{
		s:       s,
		wallet:  s.db.addWallet(store.ID, solde, active),
		client:  client,
		payment: payment,
	}
}

func (f *withdrawalFixture) request(montant string) ports.WithdrawalRequest {
	return ports.WithdrawalRequest{
		WalletIdentifier: f.wallet.ID.String(),
		PaymentID:        f.payment.ID,
		Montant:          dec(montant),
		Actor:            f.client,
	}
}

// ==================== Create ====================

func TestWithdrawalService_Create_Scenario(t *testing.T) {
	f := newWithdrawalFixture("500", true)

	wd, err := f.s.withdraw.Create(context.Background(), f.request("200"))
	require.NoError(t, err)

	assert.Equal(t, "300", f.s.db.wallets[f.wallet.ID].Solde.String())
	assert.Equal(t, "195", wd.Montant.String())
	assert.Equal(t, "5", wd.Frais.String())
	assert.Equal(t, domain.WithdrawalStatusWaiting, wd.Status)
	require.Len(t, wd.StatusHistory, 1)
	assert.Equal(t, domain.WithdrawalStatusWaiting, wd.StatusHistory[0].Status)
	assert.Nil(t, wd.AdminID)

	var debit *domain.Transfer
	for _, tr := range f.s.db.transfersOf(f.wallet.ID) {
		if tr.Type == domain.TransferTypeWithdrawal {
			tr := tr
			debit = &tr
		}
	}
	require.NotNil(t, debit)
	assert.Equal(t, "-200", debit.Montant.String())
	assertConserved(t, f.s.db, f.wallet.ID)
}

func TestWithdrawalService_RejectRefundsGross(t *testing.T) {
	f := newWithdrawalFixture("500", true)
	wd, err := f.s.withdraw.Create(context.Background(), f.request("200"))
	require.NoError(t, err)

	got, err := f.s.withdraw.UpdateStatus(context.Background(), wd.ID, domain.WithdrawalStatusRejected, "RIB mismatch")
	require.NoError(t, err)

	assert.Equal(t, domain.WithdrawalStatusRejected, got.Status)
	assert.Equal(t, "500", f.s.db.wallets[f.wallet.ID].Solde.String())

	refunds := 0
	for _, tr := range f.s.db.transfersOf(f.wallet.ID) {
		if tr.Type == domain.TransferTypeManualDeposit && tr.Montant.String() == "200" {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
	assertConserved(t, f.s.db, f.wallet.ID)
}

func TestWithdrawalService_TerminalStatusIsLocked(t *testing.T) {
	for _, terminal := range []domain.WithdrawalStatus{domain.WithdrawalStatusDone, domain.WithdrawalStatusRejected} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newWithdrawalFixture("500", true)
			wd, err := f.s.withdraw.Create(context.Background(), f.request("150"))
			require.NoError(t, err)
			_, err = f.s.withdraw.UpdateStatus(context.Background(), wd.ID, terminal, "")
			require.NoError(t, err)
			solde := f.s.db.wallets[f.wallet.ID].Solde
			history := len(f.s.db.withdrawals[wd.ID].StatusHistory)

			for _, next := range []domain.WithdrawalStatus{domain.WithdrawalStatusSeen, domain.WithdrawalStatusDone, domain.WithdrawalStatusRejected} {
				_, err := f.s.withdraw.UpdateStatus(context.Background(), wd.ID, next, "")
				assert.Equal(t, apperror.KindStateConflict, apperror.KindOf(err))
			}
			assert.Equal(t, terminal, f.s.db.withdrawals[wd.ID].Status)
			assert.Len(t, f.s.db.withdrawals[wd.ID].StatusHistory, history)
			assert.True(t, solde.Equal(f.s.db.wallets[f.wallet.ID].Solde))
		})
	}
}

func TestWithdrawalService_ForwardWorkflow(t *testing.T) {
	f := newWithdrawalFixture("500", true)
	wd, err := f.s.withdraw.Create(context.Background(), f.request("100"))
	require.NoError(t, err)

	for _, st := range []domain.WithdrawalStatus{domain.WithdrawalStatusSeen, domain.WithdrawalStatusAccepted, domain.WithdrawalStatusDone} {
		_, err := f.s.withdraw.UpdateStatus(context.Background(), wd.ID, st, "")
		require.NoError(t, err)
	}
	got, err := f.s.withdraw.Get(context.Background(), wd.ID)
	require.NoError(t, err)
	assert.Len(t, got.StatusHistory, 4)
	assert.Equal(t, "400", f.s.db.wallets[f.wallet.ID].Solde.String())

	_, err = f.s.withdraw.UpdateStatus(context.Background(), wd.ID, "paid", "")
	assert.Equal(t, "VAL_001", apperror.CodeOf(err))
}

func TestWithdrawalService_Create_Rejections(t *testing.T) {
	otherClient := domain.Principal{ID: uuid.New(), Role: domain.RoleClient}

	tests := []struct {
		name   string
		solde  string
		active bool
		mutate func(f *withdrawalFixture, req *ports.WithdrawalRequest)
		code   string
	}{
		{"below minimum", "500", true, func(_ *withdrawalFixture, r *ports.WithdrawalRequest) { r.Montant = dec("99.99") }, "VAL_003"},
		{"fraction of a cent", "500", true, func(_ *withdrawalFixture, r *ports.WithdrawalRequest) { r.Montant = dec("200.001") }, "VAL_006"},
		{"inactive wallet", "500", false, nil, "STATE_001"},
		{"insufficient funds", "150", true, nil, "FUND_001"},
		{"unknown payment", "500", true, func(_ *withdrawalFixture, r *ports.WithdrawalRequest) { r.PaymentID = uuid.New() }, "NF_005"},
		{"payment of another client", "500", true, func(f *withdrawalFixture, r *ports.WithdrawalRequest) {
			p := domain.Payment{ID: uuid.New(), ClientID: uuid.New()}
			f.s.db.payments[p.ID] = p
			r.PaymentID = p.ID
		}, "AUTH_004"},
		{"store of another client", "500", true, func(_ *withdrawalFixture, r *ports.WithdrawalRequest) { r.Actor = otherClient }, "AUTH_003"},
		{"livreur actor", "500", true, func(_ *withdrawalFixture, r *ports.WithdrawalRequest) {
			r.Actor = domain.Principal{ID: uuid.New(), Role: domain.RoleLivreur}
		}, "AUTH_003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWithdrawalFixture(tt.solde, tt.active)
			req := f.request("200")
			if tt.mutate != nil {
				tt.mutate(f, &req)
			}

			_, err := f.s.withdraw.Create(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
			assert.Empty(t, f.s.db.withdrawals)
			assert.Equal(t, tt.solde, f.s.db.wallets[f.wallet.ID].Solde.String())
		})
	}
}

func TestWithdrawalService_Create_DuplicateActiveRequest(t *testing.T) {
	f := newWithdrawalFixture("1000", true)
	_, err := f.s.withdraw.Create(context.Background(), f.request("200"))
	require.NoError(t, err)

	_, err = f.s.withdraw.Create(context.Background(), f.request("200"))
	assert.Equal(t, "STATE_006", apperror.CodeOf(err))
	assert.Equal(t, "800", f.s.db.wallets[f.wallet.ID].Solde.String(), "duplicate must not debit")
	assertConserved(t, f.s.db, f.wallet.ID)
}

func TestWithdrawalService_CreateAdmin(t *testing.T) {
	f := newWithdrawalFixture("500", true)
	admin := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
	req := f.request("300")
	req.Actor = admin

	wd, err := f.s.withdraw.CreateAdmin(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.WithdrawalStatusProcessing, wd.Status)
	require.Len(t, wd.StatusHistory, 2)
	assert.Equal(t, domain.WithdrawalStatusWaiting, wd.StatusHistory[0].Status)
	assert.Equal(t, domain.WithdrawalStatusProcessing, wd.StatusHistory[1].Status)
	require.NotNil(t, wd.AdminID)
	assert.Equal(t, admin.ID, *wd.AdminID)
	assert.Equal(t, "200", f.s.db.wallets[f.wallet.ID].Solde.String())

	req.Actor = f.client
	_, err = f.s.withdraw.CreateAdmin(context.Background(), req)
	assert.Equal(t, "AUTH_003", apperror.CodeOf(err))
}

func TestWithdrawalService_AttachProof(t *testing.T) {
	f := newWithdrawalFixture("500", true)
	wd, err := f.s.withdraw.Create(context.Background(), f.request("100"))
	require.NoError(t, err)

	got, err := f.s.withdraw.AttachProof(context.Background(), wd.ID, "receipts/2024/transfer-88.png")
	require.NoError(t, err)
	require.NotNil(t, got.Proof)
	assert.Equal(t, "receipts/2024/transfer-88.png", *got.Proof)
	assert.Equal(t, "400", f.s.db.wallets[f.wallet.ID].Solde.String())

	_, err = f.s.withdraw.AttachProof(context.Background(), wd.ID, " ")
	assert.Equal(t, "VAL_001", apperror.CodeOf(err))
	_, err = f.s.withdraw.AttachProof(context.Background(), uuid.New(), "x.png")
	assert.Equal(t, "NF_004", apperror.CodeOf(err))
}
