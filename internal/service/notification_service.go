package service

import (
	"context"

	"chattersphere/internal/models"
	"chattersphere/internal/repository"
)

// NotificationService provides notification inbox business logic.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

// NewNotificationService returns a new NotificationService.
func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.notificationRepo.ListForRecipient(ctx, recipientID, unreadOnly, limit, offset)
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return s.notificationRepo.UnreadCount(ctx, recipientID)
}

// MarkRead marks one of the recipient's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID uint) error {
	updated, err := s.notificationRepo.MarkRead(ctx, recipientID, notificationID)
	if err != nil {
		return err
	}
	if !updated {
		return models.NewNotFoundError("Notification", notificationID)
	}
	return nil
}

// MarkAllRead marks every unread notification as read and returns how many.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, recipientID)
}
