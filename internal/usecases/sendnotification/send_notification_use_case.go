package sendnotification

import (
	"context"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/tracing"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/notification"
)

// SendNotificationUseCase builds a notification from the request and dispatches it.
type SendNotificationUseCase interface {
	Execute(ctx context.Context, input SendNotificationInputDTO) (SendNotificationOutputDTO, error)
}

type sendNotificationUseCase struct {
	notifier notification.Notifier
}

func NewSendNotificationUseCase(notifier notification.Notifier) SendNotificationUseCase {
	return &sendNotificationUseCase{notifier: notifier}
}

func (s *sendNotificationUseCase) Execute(ctx context.Context, input SendNotificationInputDTO) (SendNotificationOutputDTO, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SendNotificationUseCase.Execute")
	defer span.End()

	n, err := domain.NewNotification(
		input.Recipient,
		input.DisplayName,
		input.Room,
		input.Date,
		input.Weekday,
		input.TimeSlot,
		domain.Kind(input.Kind),
		input.Message,
	)
	if err != nil {
		return SendNotificationOutputDTO{}, err
	}

	delivery, err := s.notifier.Notify(ctx, n)
	if err != nil {
		return SendNotificationOutputDTO{}, err
	}
	return SendNotificationOutputDTO{
		Route:     delivery.Route,
		Attempted: delivery.Attempted,
		Failed:    delivery.Failed,
	}, nil
}
