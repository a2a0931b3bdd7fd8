package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a message shown to a store's owner.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	StoreID     uuid.UUID `json:"store_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
