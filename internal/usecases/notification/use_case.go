package notification

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/channel"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/offline"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/tracing"
	"github.com/medeiros-dev/reservation-notifier/pkg/lineproto"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Presence is the view of the presence registry the dispatcher needs.
type Presence interface {
	Register(userID string, ch channel.Channel)
	Unregister(userID string, ch channel.Channel)
	ChannelsFor(userID string) []channel.Channel
	CountFor(userID string) int
}

// Delivery reports what a single Notify call did.
type Delivery struct {
	Route     string `json:"route"`
	Attempted int    `json:"attempted"`
	Failed    int    `json:"failed"`
}

// Notifier is the dispatch entry point used by handlers.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) (Delivery, error)
}

// Dispatcher routes each notification either to the recipient's live channels
// or, when none are registered, to the offline store. Presence is read once per
// call and the two routes are exclusive.
type Dispatcher struct {
	presence Presence
	store    offline.Store
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(presence Presence, store offline.Store) *Dispatcher {
	return &Dispatcher{presence: presence, store: store}
}

// Notify delivers n. Live send failures are logged and counted but never
// returned; the only error is a failed offline append (or an invalid n).
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) (Delivery, error) {
	ctx, span := tracing.Tracer.Start(ctx, "Dispatcher.Notify", trace.WithAttributes(
		attribute.String("notification.kind", string(n.Kind)),
		attribute.String("notification.room", n.Room),
	))
	defer span.End()

	if err := n.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Delivery{}, err
	}

	start := time.Now()
	chans := d.presence.ChannelsFor(n.Recipient)
	if len(chans) == 0 {
		return d.storeOffline(ctx, span, n, start)
	}

	line := lineproto.EncodeWire(n)
	delivery := Delivery{Route: metrics.RouteLive, Attempted: len(chans)}
	for i, ch := range chans {
		if err := safeSend(ctx, ch, line); err != nil {
			delivery.Failed++
			metrics.ChannelSendFailures.Inc()
			logger.L().Warn("Live channel send failed",
				zap.String("userID", n.Recipient),
				zap.Int("channelIndex", i),
				zap.String("kind", string(n.Kind)),
				logger.TraceField(ctx),
				zap.Error(err),
			)
		}
	}
	metrics.ObserveDispatch(metrics.RouteLive, start)
	span.SetAttributes(
		attribute.String("delivery.route", delivery.Route),
		attribute.Int("delivery.attempted", delivery.Attempted),
		attribute.Int("delivery.failed", delivery.Failed),
	)

	logger.L().Info("Notification pushed to live channels",
		zap.String("userID", n.Recipient),
		zap.String("kind", string(n.Kind)),
		zap.Int("channels", delivery.Attempted),
		zap.Int("failed", delivery.Failed),
		logger.TraceField(ctx),
	)
	return delivery, nil
}

func (d *Dispatcher) storeOffline(ctx context.Context, span trace.Span, n domain.Notification, start time.Time) (Delivery, error) {
	delivery := Delivery{Route: metrics.RouteOffline}
	span.SetAttributes(attribute.String("delivery.route", delivery.Route))

	if err := d.store.Save(ctx, n.Recipient, n); err != nil {
		metrics.OfflineSaveFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "offline save failed")
		logger.L().Error("Failed to store offline notification",
			zap.String("userID", n.Recipient),
			zap.String("kind", string(n.Kind)),
			logger.TraceField(ctx),
			zap.Error(err),
		)
		return delivery, fmt.Errorf("store offline notification for %q: %w", n.Recipient, err)
	}

	metrics.ObserveDispatch(metrics.RouteOffline, start)
	logger.L().Info("Recipient offline, notification stored",
		zap.String("userID", n.Recipient),
		zap.String("kind", string(n.Kind)),
		logger.TraceField(ctx),
	)
	return delivery, nil
}

// safeSend turns a panicking channel into an ordinary send failure.
func safeSend(ctx context.Context, ch channel.Channel, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("Panic recovered in channel send",
				zap.Any("panicValue", r),
				zap.String("stacktrace", string(debug.Stack())),
			)
			err = fmt.Errorf("channel send panicked: %v", r)
		}
	}()
	return ch.Send(ctx, line)
}

func (d *Dispatcher) RegisterClient(userID string, ch channel.Channel) {
	d.presence.Register(userID, ch)
}

func (d *Dispatcher) UnregisterClient(userID string, ch channel.Channel) {
	d.presence.Unregister(userID, ch)
}

func (d *Dispatcher) ClientCount(userID string) int {
	return d.presence.CountFor(userID)
}

// DrainOffline returns and deletes everything queued for userID.
func (d *Dispatcher) DrainOffline(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := tracing.Tracer.Start(ctx, "Dispatcher.DrainOffline")
	defer span.End()

	items, err := d.store.Drain(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "drain failed")
		return nil, fmt.Errorf("drain offline notifications for %q: %w", userID, err)
	}
	metrics.OfflineDrained.Add(float64(len(items)))
	span.SetAttributes(attribute.Int("drained", len(items)))
	return items, nil
}

// PendingCount returns how many notifications are queued for userID.
func (d *Dispatcher) PendingCount(ctx context.Context, userID string) (int, error) {
	return d.store.Count(ctx, userID)
}
