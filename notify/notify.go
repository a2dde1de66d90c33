package notify

import (
	"context"
	"errors"

	"propwise/models"
)

// Message is one outbound notification. Text is always set; HTML is optional.
type Message struct {
	To      models.User
	Subject string
	Text    string
	HTML    string
	Link    string
	Alert   *AlertPayload
}

// AlertPayload carries the saved-search match that produced a message.
type AlertPayload struct {
	SearchID   string           `json:"search_id"`
	SearchName string           `json:"search_name"`
	Count      int              `json:"count"`
	Listings   []models.Listing `json:"listings"`
}

// Dispatcher delivers a message over one channel.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// Multi fans a message out to every dispatcher. It attempts all of them and
// returns the joined errors.
type Multi []Dispatcher

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
