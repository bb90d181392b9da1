package sendnotification

import "github.com/medeiros-dev/reservation-notifier/internal/usecases/notification"

func NewSendNotification(notifier notification.Notifier) *SendNotificationHandler {
	useCase := NewSendNotificationUseCase(notifier)
	return NewSendNotificationHandler(useCase)
}
