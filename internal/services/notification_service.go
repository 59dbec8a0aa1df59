package services

import (
	"context"
	"fmt"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

type NotificationService struct {
	store  NotificationStore
	logger *log.Logger
}

func NewNotificationService(store NotificationStore, logger *log.Logger) *NotificationService {
	return &NotificationService{store: store, logger: logger.WithComponent(log.ComponentNotification)}
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]core.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

// Notify stores a new unread notification for the user.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind core.NotificationKind, message string) (core.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return core.Notification{}, fmt.Errorf("notify %s: empty message", kind)
	}
	n, err := s.store.CreateNotification(ctx, core.Notification{UserID: userID, Kind: kind, Message: message})
	if err != nil {
		return core.Notification{}, err
	}
	s.logger.InfoContext(ctx, "Notification created", log.FieldUserID, userID, "kind", kind)
	return n, nil
}
