package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord is the durable result of an admin money operation sent
// with an Idempotency-Key. (Operation, ActorID, Key) is unique.
type IdempotencyRecord struct {
	Operation  string    `json:"operation"`
	ActorID    uuid.UUID `json:"actor_id"`
	Key        string    `json:"key"`
	TransferID uuid.UUID `json:"transfer_id"`
	Response   []byte    `json:"response"` // transfer JSON returned on replay
	CreatedAt  time.Time `json:"created_at"`
}
