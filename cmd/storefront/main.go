package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/app/catalog"
	"storefront/internal/app/checkout"
	"storefront/internal/app/notification"
	"storefront/internal/app/orders"
	"storefront/internal/app/payments"
	"storefront/internal/app/shipping"
	"storefront/internal/config"
	"storefront/internal/handler/http/router"
	kafka_handler "storefront/internal/handler/kafka"
	"storefront/internal/infrastructure/database"
	kafkaInfra "storefront/internal/infrastructure/kafka"
	"storefront/internal/infrastructure/mailer"
	"storefront/internal/infrastructure/paygateway"
	"storefront/internal/outbox"
	postgres_order_repo "storefront/internal/repository/order_repo/postgres"
	postgres_outbox_repo "storefront/internal/repository/outbox_repo/postgres"
	postgres_payment_repo "storefront/internal/repository/payment_repo/postgres"
	postgres_product_repo "storefront/internal/repository/product_repo/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Storefront starting...")

	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...", zap.String("path", cfg.MigrationsPath))
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	productRepository := postgres_product_repo.NewProductRepository(database.Wrap(db), appLogger.With(zap.String("component", "ProductRepository")))
	outboxRepository := postgres_outbox_repo.NewOutboxRepository()
	orderRepository := postgres_order_repo.NewOrderRepository(db, productRepository, outboxRepository, appLogger.With(zap.String("component", "OrderRepository")))
	paymentRepository := postgres_payment_repo.NewPaymentRepository(db, appLogger.With(zap.String("component", "PaymentRepository")))

	gateway := paygateway.New(paygateway.Config{
		URL:       cfg.PaymentGateway.URL,
		SecretKey: cfg.PaymentGateway.SecretKey,
		Timeout:   cfg.PaymentGateway.Timeout,
	}, appLogger.With(zap.String("component", "PaymentGateway")))
	mail := mailer.New(mailer.Config{
		APIURL:  cfg.Mail.APIURL,
		APIKey:  cfg.Mail.APIKey,
		From:    cfg.Mail.From,
		Timeout: cfg.Mail.Timeout,
	}, appLogger.With(zap.String("component", "Mailer")))

	catalogService := catalog.NewCatalogService(productRepository, cfg.DBQueryTimeout, appLogger.With(zap.String("component", "CatalogService")))
	shippingService := shipping.NewShippingService(cfg.ShippingRates, appLogger.With(zap.String("component", "ShippingService")))
	orderService := orders.NewOrderService(catalogService, orderRepository, paymentRepository,
		cfg.KafkaOrderEventsTopic, cfg.DBQueryTimeout, appLogger.With(zap.String("component", "OrderService")))
	paymentService := payments.NewPaymentService(gateway, paymentRepository, orderService, payments.Options{
		PixExpiration:  cfg.PaymentGateway.PixExpiration,
		BoletoDueDays:  cfg.PaymentGateway.BoletoDueDays,
		GatewayTimeout: cfg.PaymentGateway.Timeout,
		QueryTimeout:   cfg.DBQueryTimeout,
	}, appLogger.With(zap.String("component", "PaymentService")))
	notificationService := notification.NewNotificationService(mail, appLogger.With(zap.String("component", "NotificationService")))
	checkoutService := checkout.NewCheckoutService(catalogService, shippingService, orderService, paymentService,
		notificationService, cfg.Mail.Timeout, appLogger.With(zap.String("component", "CheckoutService")))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		processor *outbox.Processor
		consumer  *kafkaInfra.Consumer
		producer  kafkaInfra.Producer
	)
	if cfg.KafkaEnabled {
		brokers := cfg.GetKafkaBrokers()
		topicsCtx, cancelTopics := context.WithTimeout(ctx, 30*time.Second)
		if err := kafkaInfra.EnsureTopics(topicsCtx, brokers, []string{cfg.KafkaOrderEventsTopic, cfg.KafkaPaymentStatusTopic}, appLogger); err != nil {
			appLogger.Warn("Failed to ensure Kafka topics", zap.Error(err))
		}
		cancelTopics()

		producer = kafkaInfra.NewProducer(brokers, appLogger.With(zap.String("component", "KafkaProducer")))
		appLogger.Info("Kafka producer created successfully.")

		processor = outbox.NewProcessor(database.NewTxRunner(db), outboxRepository, producer,
			cfg.OutboxPollInterval, cfg.OutboxPollTimeout, appLogger.With(zap.String("component", "OutboxProcessor")))
		processor.Start(ctx)
		appLogger.Info("Transactional Outbox sender started.")

		paymentStatusHandler := kafka_handler.NewPaymentStatusConsumer(paymentService, appLogger.With(zap.String("component", "PaymentStatusConsumer")))
		consumer = kafkaInfra.NewConsumer(brokers, cfg.KafkaPaymentStatusTopic, cfg.KafkaConsumerGroup,
			paymentStatusHandler.HandleMessage, appLogger.With(zap.String("component", "KafkaConsumer")))
		go func() {
			if err := consumer.Consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Error("Kafka payment status consumer stopped", zap.Error(err))
			}
		}()
		appLogger.Info("Kafka payment status consumer started!")
	} else {
		appLogger.Warn("Kafka disabled, order events stay in the outbox and payment status updates are not consumed")
	}

	handler := router.NewRouter(router.Services{
		Catalog:  catalogService,
		Shipping: shippingService,
		Orders:   orderService,
		Payments: paymentService,
		Checkout: checkoutService,
	}, cfg.CORSAllowedOrigins, appLogger.With(zap.String("component", "HTTP")))

	serverAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * cfg.PaymentGateway.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Storefront started", zap.String("address", serverAddr))

	<-sigChan

	appLogger.Info("Shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Storefront graceful shutdown failed", zap.Error(err))
	}
	if err := checkoutService.Drain(shutdownCtx); err != nil {
		appLogger.Warn("Order confirmations still sending at shutdown", zap.Error(err))
	}

	stop()
	if processor != nil {
		processor.Stop()
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			appLogger.Error("Error closing Kafka consumer", zap.Error(err))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}
	appLogger.Info("Storefront stopped.")
}
