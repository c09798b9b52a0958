package services

import (
	"context"
	"log/slog"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// NotificationService reads and maintains the durable event store for a
// user. Entries are only ever created by the dispatcher's persist path.
type NotificationService struct {
	log    *slog.Logger
	notifs domain.NotificationRepository
}

func NewNotificationService(log *slog.Logger, notifs domain.NotificationRepository) *NotificationService {
	return &NotificationService{log: log, notifs: notifs}
}

func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	return s.notifs.ListByReceiver(ctx, userID, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	if err := s.notifs.MarkRead(ctx, id, userID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "notifications - mark read - success", "notification_id", id, "user_id", userID)
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id int64) error {
	return s.notifs.Delete(ctx, id, userID)
}
