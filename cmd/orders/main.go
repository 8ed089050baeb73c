package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/clients"
	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/events"
	"github.com/stallside/stallside-orders-service/internal/handlers"
	"github.com/stallside/stallside-orders-service/internal/repository"
	"github.com/stallside/stallside-orders-service/internal/server"
	"github.com/stallside/stallside-orders-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logger.Named("orders-service")

	logger.Info("Starting orders-service", zap.Int("port", cfg.Server.Port))

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	cache := repository.NewRedisCache(cfg.Redis, logger)
	defer cache.Close()

	orderRepo := repository.NewPostgresOrderRepository(db, logger)
	marketRepo := repository.NewPostgresMarketRepository(db, logger)
	ledgerRepo := repository.NewPostgresLedgerRepository(db, logger)

	paymentClient := clients.NewHTTPPaymentClient(cfg.PaymentService, logger)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService, logger)

	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	availabilityService := service.NewAvailabilityService(marketRepo, cache, cfg, logger)
	ledgerService := service.NewLedgerService(ledgerRepo, paymentClient, eventPublisher, cfg, logger)
	orderService := service.NewOrderService(
		orderRepo,
		cache,
		availabilityService,
		ledgerService,
		notificationClient,
		eventPublisher,
		cfg,
		logger,
	)
	pickupService := service.NewPickupService(
		orderRepo,
		orderService,
		notificationClient,
		eventPublisher,
		cfg,
		logger,
	)

	h := handlers.NewHandlers(orderService, pickupService, availabilityService, ledgerService, cfg, logger)

	srv := server.NewServer(cfg, h, logger)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	eventConsumer := events.NewKafkaConsumer(cfg.Kafka, orderService, ledgerService, logger)
	go func() {
		if err := eventConsumer.Start(context.Background()); err != nil && err != context.Canceled {
			logger.Error("Event consumer failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eventConsumer.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name))

	return db, nil
}
