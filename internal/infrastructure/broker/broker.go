package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/broker"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Config holds configuration for the KafkaBroker.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	DLQTopic string
}

// KafkaBroker consumes reservation decisions from one topic and republishes
// retries and dead letters through a shared writer.
type KafkaBroker struct {
	writer   *kafka.Writer
	reader   *kafka.Reader
	topic    string
	groupID  string
	dlqTopic string
	mu       sync.Mutex
}

var _ broker.MessageBroker = (*KafkaBroker)(nil)

func NewKafkaBroker(cfg Config) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("KAFKA_TOPIC must be set")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("KAFKA_GROUP_ID must be set")
	}
	if cfg.DLQTopic == "" {
		logger.L().Warn("KAFKA_DLQ_TOPIC is not set. Undeliverable decisions will be discarded.")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commits are explicit
	})

	logger.L().Info("Kafka broker initialized",
		zap.String("topic", cfg.Topic),
		zap.String("groupID", cfg.GroupID),
		zap.String("dlqTopic", cfg.DLQTopic),
		zap.Strings("brokers", cfg.Brokers),
	)

	return &KafkaBroker{
		writer:   w,
		reader:   r,
		topic:    cfg.Topic,
		groupID:  cfg.GroupID,
		dlqTopic: cfg.DLQTopic,
	}, nil
}

// Consume fetches messages until ctx is cancelled. Undecodable payloads go
// straight to the DLQ; everything else is handed to consumeFunc, which owns
// settling the message.
func (kb *KafkaBroker) Consume(ctx context.Context, consumeFunc func(ctx context.Context, msg broker.Message) error) error {
	logger.L().Info("Starting Kafka consumer loop",
		zap.String("topic", kb.topic),
		zap.String("groupID", kb.groupID),
	)

	for {
		message, err := kb.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.L().Info("Context done, stopping consumer loop", zap.String("topic", kb.topic))
				return nil
			}
			logger.L().Error("Error fetching message from Kafka, continuing loop",
				zap.String("topic", kb.topic),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}

		logger.L().Debug("Fetched Kafka message",
			zap.String("topic", message.Topic),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)

		processingCtx := propagation.TraceContext{}.Extract(ctx, HeaderCarrier{Headers: &message.Headers})

		var data domain.Notification
		if err := json.Unmarshal(message.Value, &data); err != nil {
			logger.L().Error("Error unmarshalling message, moving to DLQ",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Error(err),
			)
			poison := &KafkaMessage{broker: kb, kafkaMsg: message}
			if dlqErr := poison.MoveToDLQ(processingCtx, fmt.Errorf("unmarshalling error: %w", err)); dlqErr != nil {
				logger.L().Error("Failed to move unmarshallable message to DLQ. Message may be reprocessed.",
					zap.Int64("offset", message.Offset),
					zap.Error(dlqErr),
				)
			}
			continue
		}

		metrics.MessagesReceived.WithLabelValues(kindLabel(data)).Inc()

		appMsg := &KafkaMessage{broker: kb, kafkaMsg: message, unmarshalled: data}
		if err := consumeFunc(processingCtx, appMsg); err != nil {
			logger.L().Error("Error returned by consumeFunc",
				zap.Int64("offset", message.Offset),
				zap.String("userID", data.Recipient),
				zap.Error(err),
			)
		}

		if ctx.Err() != nil {
			logger.L().Info("Context cancelled during processing, stopping consumer loop")
			return nil
		}
	}
}

// Close closes the reader and the writer.
func (kb *KafkaBroker) Close() error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	var errs []error
	if kb.reader != nil {
		if err := kb.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
	}
	if kb.writer != nil {
		if err := kb.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.L().Error("Errors occurred during Kafka resource closing", zap.Error(err))
		return err
	}
	logger.L().Info("Kafka resources closed")
	return nil
}

func kindLabel(n domain.Notification) string {
	if n.Kind == "" {
		return "unknown"
	}
	return string(n.Kind)
}
