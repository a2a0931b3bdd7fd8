package service

import (
	"context"
	"errors"
	"testing"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/internal/core/ports/mocks"
	"eromax-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWalletService_CreateMissingWallets_Idempotent(t *testing.T) {
	s := newMemServices()
	for i := 0; i < 3; i++ {
		st := domain.Store{ID: uuid.New(), ClientID: uuid.New()}
		s.db.stores[st.ID] = st
	}
	existing := domain.Store{ID: uuid.New(), ClientID: uuid.New()}
	s.db.stores[existing.ID] = existing
	s.db.addWallet(existing.ID, "0", true)

	n, err := s.wallets.CreateMissingWallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, s.db.wallets, 4)
	for _, w := range s.db.wallets {
		if w.StoreID == existing.ID {
			continue
		}
		assert.False(t, w.Active)
		assert.True(t, w.Solde.IsZero())
		assert.True(t, domain.IsWalletKey(w.Key))
	}

	n, err = s.wallets.CreateMissingWallets(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.db.wallets, 4)
}

func TestWalletService_CreateMissingWallets_LostRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	storeRepo := mocks.NewMockStoreRepository(ctrl)
	svc := NewWalletService(walletRepo, storeRepo, mocks.NewMockTransferRepository(ctrl), mocks.NewMockTransactor(ctrl), zerolog.Nop())

	storeID := uuid.New()
	storeRepo.EXPECT().ListWithoutWallet(gomock.Any()).Return([]domain.Store{{ID: storeID}}, nil)
	walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ports.ErrDuplicate)
	walletRepo.EXPECT().GetByStoreID(gomock.Any(), storeID).Return(&domain.Wallet{ID: uuid.New(), StoreID: storeID}, nil)

	n, err := svc.CreateMissingWallets(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWalletService_CreateMissingWallets_RetriesKeyCollision(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	storeRepo := mocks.NewMockStoreRepository(ctrl)
	svc := NewWalletService(walletRepo, storeRepo, mocks.NewMockTransferRepository(ctrl), mocks.NewMockTransactor(ctrl), zerolog.Nop())

	storeID := uuid.New()
	storeRepo.EXPECT().ListWithoutWallet(gomock.Any()).Return([]domain.Store{{ID: storeID}}, nil)
	gomock.InOrder(
		walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ports.ErrDuplicate),
		walletRepo.EXPECT().GetByStoreID(gomock.Any(), storeID).Return(nil, nil),
		walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
	)

	n, err := svc.CreateMissingWallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWalletService_CreateMissingWallets_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeRepo := mocks.NewMockStoreRepository(ctrl)
	svc := NewWalletService(mocks.NewMockWalletRepository(ctrl), storeRepo, mocks.NewMockTransferRepository(ctrl), mocks.NewMockTransactor(ctrl), zerolog.Nop())

	storeRepo.EXPECT().ListWithoutWallet(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.CreateMissingWallets(context.Background())
	assert.Equal(t, "SYS_002", apperror.CodeOf(err))
}

func TestWalletService_FindByIdentifier(t *testing.T) {
	s := newMemServices()
	w := s.db.addWallet(uuid.New(), "7", true)

	byID, err := s.wallets.FindByIdentifier(context.Background(), w.ID.String())
	require.NoError(t, err)
	byKey, err := s.wallets.FindByIdentifier(context.Background(), w.Key)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byKey.ID)

	_, err = s.wallets.FindByIdentifier(context.Background(), uuid.NewString())
	assert.Equal(t, "NF_002", apperror.CodeOf(err))
	_, err = s.wallets.FindByIdentifier(context.Background(), "42")
	assert.Equal(t, "VAL_005", apperror.CodeOf(err))
}

func TestWalletService_ToggleActive(t *testing.T) {
	s := newMemServices()
	w := s.db.addWallet(uuid.New(), "33", false)

	got, err := s.wallets.ToggleActive(context.Background(), w.Key)
	require.NoError(t, err)
	assert.True(t, got.Active)
	got, err = s.wallets.ToggleActive(context.Background(), w.ID.String())
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "33", s.db.wallets[w.ID].Solde.String())
}

func TestWalletService_ResetToInitial(t *testing.T) {
	s := newMemServices()
	w := s.db.addWallet(uuid.New(), "250.75", true)
	admin := uuid.New()

	got, err := s.wallets.ResetToInitial(context.Background(), w.ID.String(), admin)
	require.NoError(t, err)

	assert.True(t, got.Solde.IsZero())
	assert.False(t, got.Active)
	assertConserved(t, s.db, w.ID)

	var reversal *domain.Transfer
	for _, tr := range s.db.transfersOf(w.ID) {
		if tr.Type == domain.TransferTypeManualWithdrawal {
			tr := tr
			reversal = &tr
		}
	}
	require.NotNil(t, reversal)
	assert.Equal(t, "-250.75", reversal.Montant.String())
	require.NotNil(t, reversal.AdminID)
	assert.Equal(t, admin, *reversal.AdminID)

	// a zero wallet resets without a ledger entry
	before := len(s.db.transfersOf(w.ID))
	_, err = s.wallets.ResetToInitial(context.Background(), w.ID.String(), admin)
	require.NoError(t, err)
	assert.Len(t, s.db.transfersOf(w.ID), before)
}

func TestWalletService_CheckAccess(t *testing.T) {
	s := newMemServices()
	owner := uuid.New()
	store := domain.Store{ID: uuid.New(), ClientID: owner}
	s.db.stores[store.ID] = store
	w := s.db.addWallet(store.ID, "0", true)

	tests := []struct {
		name      string
		principal domain.Principal
		wantErr   bool
	}{
		{"admin", domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}, false},
		{"owner", domain.Principal{ID: owner, Role: domain.RoleClient}, false},
		{"other client", domain.Principal{ID: uuid.New(), Role: domain.RoleClient}, true},
		{"livreur", domain.Principal{ID: owner, Role: domain.RoleLivreur}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.wallets.CheckAccess(context.Background(), tt.principal, &w)
			if tt.wantErr {
				assert.Equal(t, "AUTH_003", apperror.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
