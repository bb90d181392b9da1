package queueconsumer

import (
	"github.com/medeiros-dev/reservation-notifier/configs"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/broker"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/capacity"
	"github.com/medeiros-dev/reservation-notifier/internal/interfaces"
	"github.com/medeiros-dev/reservation-notifier/pkg/backoff"
)

func NewQueueConsumer(messageBroker broker.MessageBroker, handler interfaces.NotificationHandlerInterface, gate capacity.Gate, cfg *configs.QueueConsumerConfig) *QueueConsumerHandler {
	semaphore := make(chan struct{}, cfg.WorkerPoolSize)
	retryPolicy := backoff.NewPolicy(cfg.BackoffBaseDelay, cfg.BackoffMaxDelay)
	useCase := NewQueueConsumerUseCase(messageBroker, handler, gate, cfg.MaxRetries, semaphore, retryPolicy)
	return NewQueueConsumerHandler(useCase)
}
