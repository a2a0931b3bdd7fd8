package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	walletKeyPrefix   = "EROMAX-WALLET-"
	walletKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	walletKeySuffix   = 5
)

// Wallet is a store's running balance. Solde is a cached view of the sum of
// the wallet's active transfers and is only written under a row lock.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	Key       string          `json:"key"`
	StoreID   uuid.UUID       `json:"store_id"`
	Solde     decimal.Decimal `json:"solde"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewWallet builds an inactive, empty wallet for a store.
func NewWallet(storeID uuid.UUID, now time.Time) (*Wallet, error) {
	key, err := GenerateWalletKey(now)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		ID:        uuid.New(),
		Key:       key,
		StoreID:   storeID,
		Solde:     decimal.Zero,
		Active:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsCents reports whether amount fits a NUMERIC(14,2) column without rounding.
func IsCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// CanDebit reports whether amount can leave the wallet without driving it negative.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Solde.GreaterThanOrEqual(amount)
}

// Apply adds delta to the cached balance.
func (w *Wallet) Apply(delta decimal.Decimal) {
	w.Solde = w.Solde.Add(delta)
}

// GenerateWalletKey returns EROMAX-WALLET-<yyyyMMdd-HH-mm>-<5 chars>.
// The unique index on wallets.key is the real uniqueness guarantee.
func GenerateWalletKey(now time.Time) (string, error) {
	buf := make([]byte, walletKeySuffix)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate wallet key: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(walletKeyPrefix)
	sb.WriteString(now.Format("20060102-15-04"))
	sb.WriteByte('-')
	for _, b := range buf {
		sb.WriteByte(walletKeyAlphabet[int(b)%len(walletKeyAlphabet)])
	}
	return sb.String(), nil
}

// IsWalletKey reports whether s looks like a human-readable wallet key
// rather than an internal id.
func IsWalletKey(s string) bool {
	return strings.HasPrefix(s, walletKeyPrefix)
}
