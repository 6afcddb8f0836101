package outbound

import (
	"context"

	"github.com/ajkula/notifytrigger/domain/model"
)

// NotificationSource opens live subscriptions to the change notification server
type NotificationSource interface {
	Connect(ctx context.Context) (NotificationStream, error)
}

// NotificationStream is one live subscription.
//
// Next blocks until a notification arrives. It returns io.EOF when the server
// ended the stream cleanly, a model.ErrTransport or model.ErrDecode wrapped
// error on failure, and returns promptly once ctx is done.
type NotificationStream interface {
	Next(ctx context.Context) (*model.Notification, error)
	Close() error
}
