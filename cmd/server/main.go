package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gibbarosa/storefront/internal/api"
	"github.com/gibbarosa/storefront/internal/cart"
	"github.com/gibbarosa/storefront/internal/cms"
	"github.com/gibbarosa/storefront/internal/config"
	"github.com/gibbarosa/storefront/internal/events"
	"github.com/gibbarosa/storefront/internal/idempotency"
	"github.com/gibbarosa/storefront/internal/payments"
	"github.com/gibbarosa/storefront/internal/repository"
	"github.com/gibbarosa/storefront/internal/repository/postgres"
	"github.com/gibbarosa/storefront/internal/repository/sanity"
	"github.com/gibbarosa/storefront/internal/service"
	"github.com/gibbarosa/storefront/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Postgres holds operators and dead letters
	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		return err
	}

	cmsClient := cms.NewClient(cfg.Sanity, logger)
	repos := &repository.Repositories{
		Order:      sanity.NewOrderRepository(cmsClient, logger),
		Product:    sanity.NewProductRepository(cmsClient, logger),
		Operator:   postgres.NewOperatorRepository(db, logger),
		DeadLetter: postgres.NewDeadLetterRepository(db, logger),
	}

	var (
		claims    idempotency.Claimer = idempotency.NoopClaimer{}
		cartStore cart.Store
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		claims = idempotency.NewStore(rdb, 24*time.Hour, idempotency.DefaultLease)
		cartStore = cart.NewRedisStore(rdb, 0)
		logger.Info("Redis enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Warn("REDIS_ADDR not set: webhook claims are disabled")
		if cfg.Cart.Dir != "" {
			fileStore, err := cart.NewFileStore(cfg.Cart.Dir)
			if err != nil {
				return fmt.Errorf("failed to open cart directory: %w", err)
			}
			cartStore = fileStore
			logger.Info("File-backed carts enabled", zap.String("dir", cfg.Cart.Dir))
		}
	}

	var publisher events.OrderPublisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic), logger)
		logger.Info("Kafka publisher enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.OrderTopic),
		)
	}
	defer publisher.Close()

	baseURL, err := cfg.Checkout.ResolveBaseURL()
	if err != nil {
		// hosted checkout answers 500 until this is fixed
		logger.Error("Checkout base URL is not configured", zap.Error(err))
	}

	provider := payments.NewStripeProvider(cfg.Stripe.SecretKey, logger)
	checkout := service.NewCheckoutService(provider, service.CheckoutSettings{
		ExpressShippingFee: cfg.Checkout.ExpressShippingFee,
		BaseURL:            baseURL,
		CMSProject:         cfg.Sanity.ProjectID,
		CMSDataset:         cfg.Sanity.Dataset,
	}, logger)
	inventory := service.NewInventoryService(repos.Product, cfg.Inventory.MaxItems, logger)
	reconciler := service.NewReconciler(repos, provider, inventory, publisher, logger)
	webhooks := service.NewWebhookService(payments.NewSignatureVerifier(cfg.Stripe.WebhookSecret), reconciler, claims, repos.DeadLetter, logger)
	deadLetters := service.NewDeadLetterService(repos.DeadLetter, reconciler, cfg.DeadLetter.MaxAttempts, logger)

	services := api.Services{
		Checkout:    checkout,
		Webhooks:    webhooks,
		Inventory:   inventory,
		DeadLetters: deadLetters,
	}
	if cartStore != nil {
		policy, err := cart.ParsePolicy(cfg.Cart.Policy)
		if err != nil {
			return err
		}
		services.Carts = service.NewCartService(cartStore, repos.Product, policy, logger)
	}

	retrier := worker.NewDeadLetterRetrier(deadLetters, cfg.DeadLetter.PollInterval, logger)
	go retrier.Run(ctx)

	router := api.NewRouter(cfg.Environment, repos, services, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
