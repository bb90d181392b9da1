package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/broker"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// KafkaMessage wraps a fetched kafka-go message.
type KafkaMessage struct {
	broker       *KafkaBroker
	kafkaMsg     kafka.Message
	unmarshalled domain.Notification
}

var _ broker.Message = (*KafkaMessage)(nil)

func (m *KafkaMessage) Data() domain.Notification {
	return m.unmarshalled
}

func (m *KafkaMessage) Headers() []kafka.Header {
	return m.kafkaMsg.Headers
}

func (m *KafkaMessage) GetRetryCount() int {
	return getRetryCount(m.kafkaMsg.Headers)
}

// Ack commits the offset for the message.
func (m *KafkaMessage) Ack(ctx context.Context) error {
	err := m.broker.reader.CommitMessages(ctx, m.kafkaMsg)
	if err != nil {
		logger.L().Error("Failed to commit Kafka message offset",
			zap.Int64("offset", m.kafkaMsg.Offset),
			zap.String("topic", m.kafkaMsg.Topic),
			logger.TraceField(ctx),
			zap.Error(err),
		)
	}
	return err
}

// Retry waits for delay, republishes the message to its topic with an
// incremented retry count and acks the original.
func (m *KafkaMessage) Retry(ctx context.Context, delay time.Duration) error {
	next := m.GetRetryCount() + 1

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry wait interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	headers := updateRetryHeader(m.kafkaMsg.Headers, next)
	propagation.TraceContext{}.Inject(ctx, HeaderCarrier{Headers: &headers})

	retryMsg := kafka.Message{
		Topic:   m.kafkaMsg.Topic,
		Key:     m.kafkaMsg.Key,
		Value:   m.kafkaMsg.Value,
		Headers: headers,
		Time:    time.Now(),
	}
	if err := m.publish(ctx, retryMsg); err != nil {
		return fmt.Errorf("failed to publish retry message: %w", err)
	}
	if err := m.Ack(ctx); err != nil {
		return fmt.Errorf("failed to ack original message after retry: %w", err)
	}

	logger.L().Info("Retry message published",
		zap.String("userID", m.unmarshalled.Recipient),
		zap.Int("nextRetryCount", next),
		zap.Duration("delay", delay),
		logger.TraceField(ctx),
	)
	return nil
}

// MoveToDLQ publishes the message to the DLQ topic with the failure reason and
// acks the original. Without a DLQ topic the message is acked and dropped.
func (m *KafkaMessage) MoveToDLQ(ctx context.Context, processingError error) error {
	kind := kindLabel(m.unmarshalled)
	metrics.MessagesDLQ.WithLabelValues(kind).Inc()

	if m.broker.dlqTopic == "" {
		logger.L().Warn("DLQ topic not configured. Discarding message.",
			zap.String("userID", m.unmarshalled.Recipient),
			logger.TraceField(ctx),
			zap.Error(processingError),
		)
		return m.Ack(ctx)
	}

	logger.L().Warn("Moving message to DLQ",
		zap.String("userID", m.unmarshalled.Recipient),
		zap.String("kind", kind),
		zap.String("dlqTopic", m.broker.dlqTopic),
		zap.Int("retries", m.GetRetryCount()),
		logger.TraceField(ctx),
		zap.Error(processingError),
	)

	headers := withHeader(m.kafkaMsg.Headers, DLQReasonHeader, []byte(processingError.Error()))
	headers = updateRetryHeader(headers, m.GetRetryCount())
	propagation.TraceContext{}.Inject(ctx, HeaderCarrier{Headers: &headers})

	dlqMsg := kafka.Message{
		Topic:   m.broker.dlqTopic,
		Key:     m.kafkaMsg.Key,
		Value:   m.kafkaMsg.Value,
		Headers: headers,
		Time:    time.Now(),
	}
	if err := m.publish(ctx, dlqMsg); err != nil {
		return fmt.Errorf("failed to publish message to DLQ: %w", err)
	}
	if err := m.Ack(ctx); err != nil {
		return fmt.Errorf("failed to ack original message after DLQ: %w", err)
	}
	return nil
}

func (m *KafkaMessage) publish(ctx context.Context, msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := m.broker.writer.WriteMessages(ctx, msg); err != nil {
		logger.L().Error("Failed to publish Kafka message",
			zap.String("topic", msg.Topic),
			logger.TraceField(ctx),
			zap.Error(err),
		)
		return err
	}
	return nil
}
