package service

import (
	"context"
	"time"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NotificationServiceImpl implements ports.Notifier on top of the notification table.
type NotificationServiceImpl struct {
	repo ports.NotificationRepository
	log  zerolog.Logger
}

// NewNotificationService creates a new NotificationServiceImpl.
func NewNotificationService(repo ports.NotificationRepository, log zerolog.Logger) *NotificationServiceImpl {
	return &NotificationServiceImpl{repo: repo, log: log}
}

// Notify stores a notification for a store. It runs after the ledger commit,
// so failures are only logged.
func (s *NotificationServiceImpl) Notify(ctx context.Context, storeID uuid.UUID, title, description string) {
	n := &domain.Notification{
		ID:          uuid.New(),
		StoreID:     storeID,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("store_id", storeID.String()).Str("title", title).Msg("failed to create notification")
	}
}
