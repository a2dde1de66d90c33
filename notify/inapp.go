package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"propwise/models"
)

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// InApp persists a message as a notification shown in the user's inbox.
type InApp struct {
	store NotificationStore
	now   func() time.Time
}

func NewInApp(store NotificationStore) *InApp {
	return &InApp{store: store, now: time.Now}
}

func (d *InApp) Send(ctx context.Context, msg Message) error {
	text := msg.Subject
	if msg.Alert != nil {
		text = fmt.Sprintf("Your saved search '%s' has %d new matching properties.", msg.Alert.SearchName, msg.Alert.Count)
	}

	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: msg.To.ID,
		Message:     text,
		Link:        msg.Link,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}
