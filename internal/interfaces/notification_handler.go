package interfaces

import (
	"context"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
)

// NotificationHandlerInterface defines the contract for handling a notification.
// It lets intake adapters (queue consumer, HTTP) stay independent of the dispatcher.
type NotificationHandlerInterface interface {
	Handle(ctx context.Context, notification domain.Notification) error
}
