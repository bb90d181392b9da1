package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medeiros-dev/reservation-notifier/configs"
	"github.com/medeiros-dev/reservation-notifier/internal/app/presence"
	"github.com/medeiros-dev/reservation-notifier/internal/app/registry"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/broker"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/classroom"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/httpapi"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/session"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/tracing"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/inspect"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/notification"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/queueconsumer"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/retention"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/sendnotification"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"

	// Offline store drivers register themselves in init()
	_ "github.com/medeiros-dev/reservation-notifier/internal/infrastructure/offline/file"
	_ "github.com/medeiros-dev/reservation-notifier/internal/infrastructure/offline/redis"
)

func main() {
	cfg, err := configs.NewConfig(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitializeLogger(logger.Options{Development: cfg.IsDevelopment(), Level: cfg.LogLevel}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Error syncing logger: %v", err)
		}
	}()

	logger.L().Info("Starting reservation notifier...",
		zap.String("dataDir", cfg.DataDir),
		zap.String("offlineStoreDriver", cfg.OfflineStoreDriver),
		zap.String("sessionAddress", cfg.SessionListenAddress),
		zap.String("httpAddress", cfg.HTTPListenAddress),
		zap.Bool("kafkaEnabled", cfg.KafkaEnabled()),
	)

	// --- Tracing ---
	tracerShutdown, err := tracing.InitTracer(cfg)
	if err != nil {
		logger.L().Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.L().Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// --- Core ---
	store, err := registry.NewStore(cfg)
	if err != nil {
		logger.L().Fatal("Failed to initialize offline store",
			zap.String("driver", cfg.OfflineStoreDriver),
			zap.Strings("available", registry.Drivers()),
			zap.Error(err),
		)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	catalog, err := classroom.NewCatalog(cfg.ClassroomFile)
	if err != nil {
		logger.L().Fatal("Failed to load classroom catalogue", zap.String("path", cfg.ClassroomFile), zap.Error(err))
	}

	dispatcher, dispatchHandler := notification.NewDispatchNotification(presence.NewRegistry(), store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// --- Retention sweeper ---
	sweeper := retention.NewSweeper(store, cfg.RetentionHorizon, cfg.SweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// --- Session server ---
	sessions := session.NewServer(cfg.SessionListenAddress, dispatcher, cfg.SessionWriteTimeout)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sessions.ListenAndServe(ctx); err != nil {
			logger.L().Fatal("Session server failed", zap.Error(err))
		}
	}()

	// --- HTTP API ---
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(cfg.OtelServiceName,
		sendnotification.NewSendNotification(dispatcher),
		inspect.NewHandlers(dispatcher, catalog),
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.L().Info("Starting HTTP server", zap.String("address", cfg.HTTPListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Kafka intake ---
	if cfg.KafkaEnabled() {
		messageBroker, err := broker.NewKafkaBroker(broker.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  cfg.KafkaGroupID,
			DLQTopic: cfg.KafkaDLQTopic,
		})
		if err != nil {
			logger.L().Fatal("Failed to initialize Kafka broker", zap.Error(err))
		}
		defer func() {
			if err := messageBroker.Close(); err != nil {
				logger.L().Error("Error closing Kafka broker", zap.Error(err))
			}
		}()

		queueConsumer := queueconsumer.NewQueueConsumer(messageBroker, dispatchHandler, catalog, cfg.QueueConsumer())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queueConsumer.Handle(ctx); err != nil {
				logger.L().Error("Kafka consumer exited with error", zap.Error(err))
			}
		}()
	} else {
		logger.L().Info("KAFKA_BROKERS not set, reservation decision intake disabled")
	}

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.L().Info("Received signal, shutting down gracefully...", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	wg.Wait()
	logger.L().Info("Reservation notifier shut down complete.")
}
