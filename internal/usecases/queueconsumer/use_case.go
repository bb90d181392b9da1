package queueconsumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/broker"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/capacity"
	"github.com/medeiros-dev/reservation-notifier/internal/interfaces"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/tracing"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/notification"
	"github.com/medeiros-dev/reservation-notifier/pkg/backoff"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultMaxRetries = 3

// QueueConsumerUseCase turns reservation decisions fetched from the broker
// into dispatched notifications. Each message is processed on its own
// goroutine, bounded by the semaphore.
type QueueConsumerUseCase struct {
	messageBroker broker.MessageBroker
	handler       interfaces.NotificationHandlerInterface
	gate          capacity.Gate
	maxRetries    int
	semaphore     chan struct{}
	backoff       *backoff.Policy
	inFlight      sync.WaitGroup
}

func NewQueueConsumerUseCase(
	messageBroker broker.MessageBroker,
	handler interfaces.NotificationHandlerInterface,
	gate capacity.Gate,
	maxRetries int,
	semaphore chan struct{},
	retryPolicy *backoff.Policy,
) *QueueConsumerUseCase {
	if maxRetries <= 0 {
		logger.L().Warn("Invalid maxRetries provided, defaulting",
			zap.Int("providedMaxRetries", maxRetries),
			zap.Int("defaultMaxRetries", DefaultMaxRetries),
		)
		maxRetries = DefaultMaxRetries
	}
	if gate == nil {
		logger.L().Warn("No capacity gate provided, room checks are disabled")
	}
	return &QueueConsumerUseCase{
		messageBroker: messageBroker,
		handler:       handler,
		gate:          gate,
		maxRetries:    maxRetries,
		semaphore:     semaphore,
		backoff:       retryPolicy,
	}
}

// Execute consumes until ctx is cancelled, then waits for in-flight messages.
func (u *QueueConsumerUseCase) Execute(ctx context.Context) error {
	consumeFunc := func(ctx context.Context, msg broker.Message) error {
		select {
		case u.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		consumerCtx, span := tracing.Tracer.Start(ctx, "QueueConsumer.processMessage",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attribute.String("notification.kind", string(msg.Data().Kind))),
		)

		u.inFlight.Add(1)
		go func(processingCtx context.Context, message broker.Message) {
			defer u.inFlight.Done()
			defer span.End()
			defer func() { <-u.semaphore }()

			u.processMessage(processingCtx, message)
		}(consumerCtx, msg)

		return nil
	}

	logger.L().Info("QueueConsumerUseCase starting consumption...")
	err := u.messageBroker.Consume(ctx, consumeFunc)
	u.inFlight.Wait()
	return err
}

// validateMessage rejects decisions that can never be delivered and parks them
// on the DLQ.
func (u *QueueConsumerUseCase) validateMessage(ctx context.Context, msg broker.Message, n domain.Notification) error {
	invalid := n.Validate()
	if invalid == nil && u.gate != nil && !u.gate.ClassroomExists(n.Room) {
		invalid = fmt.Errorf("%w: %q", domain.ErrUnknownRoom, n.Room)
	}
	if invalid == nil {
		return nil
	}

	logger.L().Warn("Invalid reservation decision, moving to DLQ",
		zap.String("userID", n.Recipient),
		zap.String("room", n.Room),
		logger.TraceField(ctx),
		zap.Error(invalid),
	)
	if dlqErr := msg.MoveToDLQ(ctx, invalid); dlqErr != nil {
		logger.L().Error("Error moving invalid message to DLQ",
			zap.String("userID", n.Recipient),
			logger.TraceField(ctx),
			zap.Error(dlqErr),
		)
	}
	return invalid
}

func (u *QueueConsumerUseCase) processMessage(ctx context.Context, msg broker.Message) {
	n := msg.Data()
	kind := string(n.Kind)
	if kind == "" {
		kind = "unknown"
	}

	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("CRITICAL: Panic recovered in processMessage",
				zap.Any("panicValue", r),
				zap.String("stacktrace", string(debug.Stack())),
				zap.String("userID", n.Recipient),
				logger.TraceField(ctx),
			)
			if dlqErr := msg.MoveToDLQ(context.Background(), fmt.Errorf("panic recovered: %v", r)); dlqErr != nil {
				logger.L().Error("Failed to move message to DLQ after panic", zap.Error(dlqErr))
			}
		}
	}()

	startTime := time.Now()
	currentAttempt := msg.GetRetryCount() + 1
	ctx = context.WithValue(ctx, notification.AttemptKey, currentAttempt)

	logger.L().Info("Processing reservation decision",
		zap.String("userID", n.Recipient),
		zap.String("kind", kind),
		zap.String("room", n.Room),
		zap.Int("attempt", currentAttempt),
		zap.Int("maxRetries", u.maxRetries),
		logger.TraceField(ctx),
	)

	if err := u.validateMessage(ctx, msg, n); err != nil {
		metrics.ObserveDuration(kind, false, startTime)
		metrics.MessagesFailed.WithLabelValues(kind).Inc()
		return
	}

	if err := u.handler.Handle(ctx, n); err != nil {
		if currentAttempt == 1 {
			metrics.MessagesFailed.WithLabelValues(kind).Inc()
		}
		metrics.ObserveDuration(kind, false, startTime)
		u.handleDispatchError(ctx, msg, kind, err, currentAttempt)
		return
	}

	if err := msg.Ack(ctx); err != nil {
		logger.L().Error("Error acknowledging message after successful dispatch",
			zap.String("userID", n.Recipient),
			zap.Int("attempt", currentAttempt),
			logger.TraceField(ctx),
			zap.Error(err),
		)
		metrics.ObserveDuration(kind, true, startTime)
		return
	}

	metrics.MessagesProcessed.WithLabelValues(kind).Inc()
	metrics.ObserveDuration(kind, true, startTime)
}

// handleDispatchError retries transient storage failures with backoff and
// dead-letters the rest.
func (u *QueueConsumerUseCase) handleDispatchError(ctx context.Context, msg broker.Message, kind string, dispatchErr error, currentAttempt int) {
	n := msg.Data()
	logger.L().Error("Error dispatching reservation decision",
		zap.String("userID", n.Recipient),
		zap.String("kind", kind),
		zap.Int("attempt", currentAttempt),
		zap.Int("maxRetries", u.maxRetries),
		logger.TraceField(ctx),
		zap.Error(dispatchErr),
	)

	retryable := !errors.Is(dispatchErr, domain.ErrStoreNotConfigured)
	if retryable && currentAttempt < u.maxRetries {
		delay := u.backoff.Delay(currentAttempt + 1)
		logger.L().Info("Scheduling retry",
			zap.String("userID", n.Recipient),
			zap.Int("attempt", currentAttempt+1),
			zap.Duration("backoffDuration", delay),
			logger.TraceField(ctx),
		)

		retryErr := msg.Retry(ctx, delay)
		if retryErr == nil {
			metrics.MessagesRetried.WithLabelValues(kind).Inc()
			return
		}
		logger.L().Error("Failed to schedule retry, moving to DLQ",
			zap.String("userID", n.Recipient),
			logger.TraceField(ctx),
			zap.Error(retryErr),
		)
		dispatchErr = fmt.Errorf("failed to schedule retry: %w; original error: %w", retryErr, dispatchErr)
	} else if retryable {
		logger.L().Warn("Max retries reached, moving message to DLQ",
			zap.String("userID", n.Recipient),
			zap.Int("maxRetries", u.maxRetries),
			logger.TraceField(ctx),
		)
		dispatchErr = fmt.Errorf("max retries (%d) reached; final error: %w", u.maxRetries, dispatchErr)
	}

	if dlqErr := msg.MoveToDLQ(ctx, dispatchErr); dlqErr != nil {
		logger.L().Error("Failed to move message to DLQ",
			zap.String("userID", n.Recipient),
			logger.TraceField(ctx),
			zap.Error(dlqErr),
		)
	}
}
