package domain

import "github.com/google/uuid"

// Store is a merchant storefront owned by one client.
type Store struct {
	ID       uuid.UUID `json:"id"`
	ClientID uuid.UUID `json:"client_id"`
	Name     string    `json:"name"`
}

// Payment is a client's payout method.
type Payment struct {
	ID       uuid.UUID `json:"id"`
	ClientID uuid.UUID `json:"client_id"`
	Bank     string    `json:"bank"`
	RIB      string    `json:"rib"`
}

// BelongsTo reports whether the payout method is owned by clientID.
func (p *Payment) BelongsTo(clientID uuid.UUID) bool {
	return p.ClientID == clientID
}
