package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memDB is an in-memory stand-in for PostgreSQL. memTransactor restores a
// snapshot when the scope fails, so tests observe all-or-nothing writes.
type memDB struct {
	wallets       map[uuid.UUID]domain.Wallet
	transfers     map[uuid.UUID]domain.Transfer
	withdrawals   map[uuid.UUID]domain.Withdrawal
	stores        map[uuid.UUID]domain.Store
	payments      map[uuid.UUID]domain.Payment
	parcels       map[uuid.UUID]domain.Colis
	factures      []domain.Facture
	ramasser      []domain.FactureRamasser
	notifications []domain.Notification

	// idemMu guards idempotency, which is also read outside scopes
	idemMu      sync.Mutex
	idempotency map[string]domain.IdempotencyRecord

	// failures injects an error for a "repo.Method" call
	failures map[string]error
	// codeCollisions makes the next invoice inserts report ports.ErrCodeTaken
	codeCollisions int
}

func newMemDB() *memDB {
	return &memDB{
		wallets:     map[uuid.UUID]domain.Wallet{},
		transfers:   map[uuid.UUID]domain.Transfer{},
		withdrawals: map[uuid.UUID]domain.Withdrawal{},
		stores:      map[uuid.UUID]domain.Store{},
		payments:    map[uuid.UUID]domain.Payment{},
		parcels:     map[uuid.UUID]domain.Colis{},
		idempotency: map[string]domain.IdempotencyRecord{},
		failures:    map[string]error{},
	}
}

func (db *memDB) fail(op string) error {
	return db.failures[op]
}

type memSnapshot struct {
	wallets     map[uuid.UUID]domain.Wallet
	transfers   map[uuid.UUID]domain.Transfer
	withdrawals map[uuid.UUID]domain.Withdrawal
	parcels     map[uuid.UUID]domain.Colis
	factures    []domain.Facture
	ramasser    []domain.FactureRamasser
	idempotency map[string]domain.IdempotencyRecord
}

func (db *memDB) snapshot() memSnapshot {
	s := memSnapshot{
		wallets:     make(map[uuid.UUID]domain.Wallet, len(db.wallets)),
		transfers:   make(map[uuid.UUID]domain.Transfer, len(db.transfers)),
		withdrawals: make(map[uuid.UUID]domain.Withdrawal, len(db.withdrawals)),
		parcels:     make(map[uuid.UUID]domain.Colis, len(db.parcels)),
		factures:    append([]domain.Facture(nil), db.factures...),
		ramasser:    append([]domain.FactureRamasser(nil), db.ramasser...),
	}
	for k, v := range db.wallets {
		s.wallets[k] = v
	}
	for k, v := range db.transfers {
		s.transfers[k] = v
	}
	for k, v := range db.withdrawals {
		v.StatusHistory = append([]domain.StatusEntry(nil), v.StatusHistory...)
		s.withdrawals[k] = v
	}
	for k, v := range db.parcels {
		s.parcels[k] = v
	}
	db.idemMu.Lock()
	s.idempotency = make(map[string]domain.IdempotencyRecord, len(db.idempotency))
	for k, v := range db.idempotency {
		s.idempotency[k] = v
	}
	db.idemMu.Unlock()
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.wallets = s.wallets
	db.transfers = s.transfers
	db.withdrawals = s.withdrawals
	db.parcels = s.parcels
	db.factures = s.factures
	db.ramasser = s.ramasser
	db.idemMu.Lock()
	db.idempotency = s.idempotency
	db.idemMu.Unlock()
}

// activeSum is the ledger view of a wallet's balance.
func (db *memDB) activeSum(walletID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range db.transfers {
		if t.WalletID == walletID {
			sum = sum.Add(t.Effect())
		}
	}
	return sum
}

func (db *memDB) transfersOf(walletID uuid.UUID) []domain.Transfer {
	var out []domain.Transfer
	for _, t := range db.transfers {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out
}

func (db *memDB) addWallet(storeID uuid.UUID, solde string, active bool) domain.Wallet {
	w, err := domain.NewWallet(storeID, time.Now().UTC())
	if err != nil {
		panic(err)
	}
	w.Solde = decimal.RequireFromString(solde)
	w.Active = active
	db.wallets[w.ID] = *w
	if !w.Solde.IsZero() {
		// opening balance so the ledger matches the cached solde
		t := domain.NewTransfer(w.ID, domain.TransferTypeManualDeposit, w.Solde, time.Now().UTC())
		db.transfers[t.ID] = *t
	}
	return *w
}

// --- Transactor ---

type memTxKey struct{}

// memTransactor serializes top-level scopes, standing in for row locks.
type memTransactor struct {
	db *memDB
	mu sync.Mutex
}

func (m *memTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.fail("tx.Commit"); err != nil {
		return err
	}
	snap := m.db.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.db.restore(snap)
		return err
	}
	return nil
}

// --- Wallets ---

type memWallets struct{ db *memDB }

func (r *memWallets) Create(_ context.Context, w *domain.Wallet) error {
	if err := r.db.fail("wallets.Create"); err != nil {
		return err
	}
	for _, existing := range r.db.wallets {
		if existing.StoreID == w.StoreID || existing.Key == w.Key {
			return ports.ErrDuplicate
		}
	}
	r.db.wallets[w.ID] = *w
	return nil
}

func (r *memWallets) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := r.db.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *memWallets) GetByKey(_ context.Context, key string) (*domain.Wallet, error) {
	for _, w := range r.db.wallets {
		if w.Key == key {
			return &w, nil
		}
	}
	return nil, nil
}

func (r *memWallets) GetByStoreID(_ context.Context, storeID uuid.UUID) (*domain.Wallet, error) {
	for _, w := range r.db.wallets {
		if w.StoreID == storeID {
			return &w, nil
		}
	}
	return nil, nil
}

func (r *memWallets) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *memWallets) GetByStoreIDForUpdate(ctx context.Context, storeID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByStoreID(ctx, storeID)
}

func (r *memWallets) Update(_ context.Context, w *domain.Wallet) error {
	if err := r.db.fail("wallets.Update"); err != nil {
		return err
	}
	r.db.wallets[w.ID] = *w
	return nil
}

func (r *memWallets) List(_ context.Context, _ ports.WalletListParams) ([]domain.Wallet, int64, error) {
	var out []domain.Wallet
	for _, w := range r.db.wallets {
		out = append(out, w)
	}
	return out, int64(len(out)), nil
}

// --- Transfers ---

type memTransfers struct{ db *memDB }

func (r *memTransfers) Create(_ context.Context, t *domain.Transfer) error {
	if err := r.db.fail("transfers.Create"); err != nil {
		return err
	}
	r.db.transfers[t.ID] = *t
	return nil
}

func (r *memTransfers) GetByID(_ context.Context, id uuid.UUID) (*domain.Transfer, error) {
	t, ok := r.db.transfers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memTransfers) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *memTransfers) Update(_ context.Context, t *domain.Transfer) error {
	if err := r.db.fail("transfers.Update"); err != nil {
		return err
	}
	r.db.transfers[t.ID] = *t
	return nil
}

func (r *memTransfers) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.db.transfers, id)
	return nil
}

func (r *memTransfers) List(_ context.Context, p ports.TransferListParams) ([]domain.Transfer, int64, error) {
	var out []domain.Transfer
	for _, t := range r.db.transfers {
		if p.WalletID != nil && t.WalletID != *p.WalletID {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (r *memTransfers) SumActive(_ context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	return r.db.activeSum(walletID), nil
}

// --- Withdrawals ---

type memWithdrawals struct{ db *memDB }

func (r *memWithdrawals) Create(_ context.Context, w *domain.Withdrawal) error {
	for _, existing := range r.db.withdrawals {
		if existing.WalletID == w.WalletID && existing.PaymentID == w.PaymentID &&
			existing.Montant.Equal(w.Montant) && !existing.Status.IsTerminal() {
			return ports.ErrDuplicate
		}
	}
	r.db.withdrawals[w.ID] = r.copy(*w)
	return nil
}

func (r *memWithdrawals) copy(w domain.Withdrawal) domain.Withdrawal {
	w.StatusHistory = append([]domain.StatusEntry(nil), w.StatusHistory...)
	return w
}

func (r *memWithdrawals) GetByID(_ context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	w, ok := r.db.withdrawals[id]
	if !ok {
		return nil, nil
	}
	w = r.copy(w)
	return &w, nil
}

func (r *memWithdrawals) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.GetByID(ctx, id)
}

func (r *memWithdrawals) Update(_ context.Context, w *domain.Withdrawal) error {
	r.db.withdrawals[w.ID] = r.copy(*w)
	return nil
}

func (r *memWithdrawals) List(_ context.Context, _ ports.WithdrawalListParams) ([]domain.Withdrawal, int64, error) {
	var out []domain.Withdrawal
	for _, w := range r.db.withdrawals {
		out = append(out, w)
	}
	return out, int64(len(out)), nil
}

// --- Stores, payments, parcels ---

type memStores struct{ db *memDB }

func (r *memStores) GetByID(_ context.Context, id uuid.UUID) (*domain.Store, error) {
	s, ok := r.db.stores[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memStores) ListWithoutWallet(_ context.Context) ([]domain.Store, error) {
	var out []domain.Store
	for _, s := range r.db.stores {
		has := false
		for _, w := range r.db.wallets {
			if w.StoreID == s.ID {
				has = true
				break
			}
		}
		if !has {
			out = append(out, s)
		}
	}
	return out, nil
}

type memPayments struct{ db *memDB }

func (r *memPayments) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, ok := r.db.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type memParcels struct{ db *memDB }

func (r *memParcels) GetByID(_ context.Context, id uuid.UUID) (*domain.Colis, error) {
	c, ok := r.db.parcels[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memParcels) SetWalletProcessed(_ context.Context, id uuid.UUID, processed bool) error {
	if err := r.db.fail("parcels.SetWalletProcessed"); err != nil {
		return err
	}
	c, ok := r.db.parcels[id]
	if !ok {
		return errors.New("parcel not found")
	}
	c.WalletProcessed = processed
	r.db.parcels[id] = c
	return nil
}

func (r *memParcels) list(from, to time.Time, match func(domain.Colis) bool) []domain.Colis {
	var out []domain.Colis
	for _, c := range r.db.parcels {
		if match(c) && !c.OutcomeAt.Before(from) && c.OutcomeAt.Before(to) {
			out = append(out, c)
		}
	}
	return out
}

func (r *memParcels) ListSettleable(_ context.Context, from, to time.Time) ([]domain.Colis, error) {
	return r.list(from, to, func(c domain.Colis) bool {
		return c.Statut == domain.ColisStatusDelivered || c.Statut == domain.ColisStatusRefused
	}), nil
}

func (r *memParcels) ListPickedUp(_ context.Context, from, to time.Time) ([]domain.Colis, error) {
	return r.list(from, to, func(c domain.Colis) bool { return c.Statut == domain.ColisStatusPickedUp }), nil
}

// --- Invoices ---

type memInvoices struct{ db *memDB }

func (r *memInvoices) IsInvoiced(_ context.Context, colisID uuid.UUID, typ domain.FactureType) (bool, error) {
	for _, f := range r.db.factures {
		if f.Type != typ {
			continue
		}
		for _, id := range f.ColisIDs {
			if id == colisID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memInvoices) IsPickupInvoiced(_ context.Context, colisID uuid.UUID) (bool, error) {
	for _, f := range r.db.ramasser {
		for _, id := range f.ColisIDs {
			if id == colisID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memInvoices) codeTaken(code string) bool {
	if r.db.codeCollisions > 0 {
		r.db.codeCollisions--
		return true
	}
	for _, f := range r.db.factures {
		if f.Code == code {
			return true
		}
	}
	for _, f := range r.db.ramasser {
		if f.Code == code {
			return true
		}
	}
	return false
}

func (r *memInvoices) CreateFacture(ctx context.Context, f *domain.Facture) error {
	if r.codeTaken(f.Code) {
		return ports.ErrCodeTaken
	}
	for _, id := range f.ColisIDs {
		if ok, _ := r.IsInvoiced(ctx, id, f.Type); ok {
			return ports.ErrDuplicate
		}
	}
	r.db.factures = append(r.db.factures, *f)
	return nil
}

func (r *memInvoices) CreateFactureRamasser(ctx context.Context, f *domain.FactureRamasser) error {
	if r.codeTaken(f.Code) {
		return ports.ErrCodeTaken
	}
	for _, id := range f.ColisIDs {
		if ok, _ := r.IsPickupInvoiced(ctx, id); ok {
			return ports.ErrDuplicate
		}
	}
	r.db.ramasser = append(r.db.ramasser, *f)
	return nil
}

// --- Idempotency records ---

type memIdempotency struct{ db *memDB }

func (r *memIdempotency) Create(_ context.Context, rec *domain.IdempotencyRecord) error {
	r.db.idemMu.Lock()
	defer r.db.idemMu.Unlock()
	k := idempotencyKey(rec.Operation, rec.ActorID, rec.Key)
	if _, ok := r.db.idempotency[k]; ok {
		return ports.ErrDuplicate
	}
	r.db.idempotency[k] = *rec
	return nil
}

func (r *memIdempotency) Get(_ context.Context, operation string, actorID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	r.db.idemMu.Lock()
	defer r.db.idemMu.Unlock()
	rec, ok := r.db.idempotency[idempotencyKey(operation, actorID, key)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// --- Redis-backed ports ---

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

type memLock struct{ held map[string]bool }

func (l *memLock) Acquire(_ context.Context, name string, _ time.Duration) (bool, error) {
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func (l *memLock) Release(_ context.Context, name string) error {
	delete(l.held, name)
	return nil
}

type memNotifier struct{ db *memDB }

func (n *memNotifier) Notify(_ context.Context, storeID uuid.UUID, title, description string) {
	n.db.notifications = append(n.db.notifications, domain.Notification{
		ID: uuid.New(), StoreID: storeID, Title: title, Description: description,
	})
}

// memServices wires every service over one memDB.
type memServices struct {
	db         *memDB
	wallets    *WalletServiceImpl
	ledger     *LedgerServiceImpl
	withdraw   *WithdrawalServiceImpl
	settlement *SettlementServiceImpl
	lock       *memLock
	cache      *memCache
}

func newMemServices() *memServices {
	db := newMemDB()
	tx := &memTransactor{db: db}
	walletRepo := &memWallets{db: db}
	transferRepo := &memTransfers{db: db}
	parcelRepo := &memParcels{db: db}
	cache := &memCache{entries: map[string][]byte{}}
	lock := &memLock{held: map[string]bool{}}
	log := testLogger()

	return &memServices{
		db:      db,
		lock:    lock,
		cache:   cache,
		wallets: NewWalletService(walletRepo, &memStores{db: db}, transferRepo, tx, log),
		ledger:  NewLedgerService(walletRepo, transferRepo, parcelRepo, &memIdempotency{db: db}, cache, tx, time.Hour, log),
		withdraw: NewWithdrawalService(walletRepo, transferRepo, &memWithdrawals{db: db},
			&memStores{db: db}, &memPayments{db: db}, tx,
			decimal.NewFromInt(5), decimal.NewFromInt(100), log),
		settlement: NewSettlementService(parcelRepo, &memInvoices{db: db}, walletRepo, transferRepo,
			&memNotifier{db: db}, lock, tx, decimal.NewFromInt(5), 10*time.Minute, time.UTC, log),
	}
}
