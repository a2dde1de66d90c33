package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"propwise/apperr"
	"propwise/identity"
	"propwise/models"
)

const notificationPageSize = 50

type NotificationStore interface {
	ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error)
}

// NotificationService exposes a user's in-app inbox
type NotificationService struct {
	store NotificationStore
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) List(ctx context.Context, p identity.Principal, unreadOnly bool) ([]models.Notification, error) {
	if !p.Authenticated() {
		return nil, apperr.Forbidden("sign in to view notifications")
	}
	items, err := s.store.ListNotifications(ctx, p.UserID, unreadOnly, notificationPageSize)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	if !p.Authenticated() {
		return apperr.Forbidden("sign in to manage notifications")
	}
	ok, err := s.store.MarkNotificationRead(ctx, id, p.UserID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return apperr.NotFound("notification not found")
	}
	return nil
}
