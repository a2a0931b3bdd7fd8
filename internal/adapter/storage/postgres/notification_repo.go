package postgres

import (
	"context"
	"fmt"

	"eromax-ledger/internal/core/domain"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create stores a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO notifications (id, store_id, title, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.StoreID, n.Title, n.Description, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
