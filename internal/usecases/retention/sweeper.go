package retention

import (
	"context"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/offline"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/tracing"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	DefaultHorizon  = 7 * 24 * time.Hour
	DefaultInterval = time.Hour
)

// Sweeper periodically deletes offline logs that were last written before
// the retention horizon.
type Sweeper struct {
	store    offline.Store
	horizon  time.Duration
	interval time.Duration
}

func NewSweeper(store offline.Store, horizon, interval time.Duration) *Sweeper {
	if horizon <= 0 {
		logger.L().Warn("Invalid retention horizon, defaulting",
			zap.Duration("provided", horizon),
			zap.Duration("default", DefaultHorizon),
		)
		horizon = DefaultHorizon
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{store: store, horizon: horizon, interval: interval}
}

// SweepOnce runs a single pass and returns how many logs were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := tracing.Tracer.Start(ctx, "Sweeper.SweepOnce")
	defer span.End()

	removed, err := s.store.SweepOlderThan(ctx, s.horizon)
	metrics.OfflineLogsSwept.Add(float64(removed))
	span.SetAttributes(attribute.Int("sweep.removed", removed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep incomplete")
		logger.L().Error("Retention sweep finished with errors",
			zap.Int("removed", removed),
			zap.Duration("horizon", s.horizon),
			zap.Error(err),
		)
		return removed, err
	}

	logger.L().Info("Retention sweep finished",
		zap.Int("removed", removed),
		zap.Duration("horizon", s.horizon),
	)
	return removed, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	logger.L().Info("Retention sweeper started",
		zap.Duration("horizon", s.horizon),
		zap.Duration("interval", s.interval),
	)
	_, _ = s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.L().Info("Retention sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
