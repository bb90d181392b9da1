package notification

import (
	"context"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/interfaces"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

type contextKey string

// AttemptKey carries the delivery attempt number set by the queue consumer.
const AttemptKey contextKey = "attempt"

type DispatchNotificationHandler struct {
	notifier Notifier
}

var _ interfaces.NotificationHandlerInterface = (*DispatchNotificationHandler)(nil)

func NewDispatchNotificationHandler(notifier Notifier) *DispatchNotificationHandler {
	return &DispatchNotificationHandler{notifier: notifier}
}

// Handle dispatches one notification. A returned error means the offline
// append failed and the caller may retry.
func (h *DispatchNotificationHandler) Handle(ctx context.Context, notification domain.Notification) error {
	attempt, _ := ctx.Value(AttemptKey).(int)

	logger.L().Debug("Handling notification dispatch",
		zap.String("userID", notification.Recipient),
		zap.String("kind", string(notification.Kind)),
		zap.String("room", notification.Room),
		zap.Int("attempt", attempt),
		logger.TraceField(ctx),
	)

	delivery, err := h.notifier.Notify(ctx, notification)
	if err != nil {
		logger.L().Error("Failed to dispatch notification",
			zap.String("userID", notification.Recipient),
			zap.String("kind", string(notification.Kind)),
			zap.Int("attempt", attempt),
			logger.TraceField(ctx),
			zap.Error(err),
		)
		return err
	}

	logger.L().Debug("Notification dispatched",
		zap.String("userID", notification.Recipient),
		zap.String("route", delivery.Route),
		zap.Int("attempted", delivery.Attempted),
		zap.Int("failed", delivery.Failed),
		zap.Int("attempt", attempt),
		logger.TraceField(ctx),
	)
	return nil
}
