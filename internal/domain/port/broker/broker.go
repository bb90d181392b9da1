package broker

import (
	"context"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Message is one reservation decision fetched from the broker, together with
// the lifecycle operations that settle it (Ack, Retry, MoveToDLQ).
type Message interface {
	// Data returns the decoded notification.
	Data() domain.Notification
	// GetRetryCount returns how many times the message was already retried.
	GetRetryCount() int
	// Ack commits the message as processed.
	Ack(ctx context.Context) error
	// Retry republishes the message with an incremented retry count.
	Retry(ctx context.Context, delay time.Duration) error
	// MoveToDLQ parks the message on the dead letter topic and acks the original.
	MoveToDLQ(ctx context.Context, processingError error) error
	// Headers returns the message headers used for trace propagation.
	Headers() []kafka.Header
}

// MessageBroker consumes reservation decisions.
type MessageBroker interface {
	// Consume blocks, handing every fetched message to consumeFunc, until ctx is
	// cancelled. consumeFunc owns settling each message.
	Consume(ctx context.Context, consumeFunc func(ctx context.Context, msg Message) error) error
	Close() error
}
