package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stockcount-service/internal/api/handlers"
	"github.com/wms-platform/stockcount-service/internal/application"
	"github.com/wms-platform/stockcount-service/internal/config"
	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/internal/infrastructure/erp"
	"github.com/wms-platform/stockcount-service/internal/infrastructure/locking"
	mongoRepo "github.com/wms-platform/stockcount-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/stockcount-service/pkg/cloudevents"
	"github.com/wms-platform/stockcount-service/pkg/idempotency"
	"github.com/wms-platform/stockcount-service/pkg/kafka"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/metrics"
	"github.com/wms-platform/stockcount-service/pkg/middleware"
	"github.com/wms-platform/stockcount-service/pkg/mongodb"
	"github.com/wms-platform/stockcount-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/stockcount-service/pkg/outbox/mongodb"
	"github.com/wms-platform/stockcount-service/pkg/tracing"
)

func main() {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(context.Background(), signalCh); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, signalCh <-chan os.Signal) error {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig("stockcount-service")).WithError(err).Error("Invalid configuration")
		return err
	}
	serviceName := cfg.ServiceName

	// Setup logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting stockcount-service API")

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.Enabled = cfg.Tracing.Enabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", tracingConfig.Enabled, "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))
	logger.Info("Metrics initialized")

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBClientConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		return err
	}
	defer mongoClient.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	if err := mongoRepo.EnsureIndexes(ctx, mongoClient); err != nil {
		logger.WithError(err).Error("Failed to ensure indexes")
		return err
	}

	// Initialize lock backend
	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize lock backend")
		return err
	}
	defer closeLocker()
	logger.Info("Lock backend initialized", "backend", cfg.Lock.Backend)

	// Initialize repositories and the transactional outbox
	db := mongoClient.Database()
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceStockCount)

	deps := application.Dependencies{
		Inventories: mongoRepo.NewInventoryRepository(db, m),
		Items:       mongoRepo.NewItemRepository(db, m),
		Counts:      mongoRepo.NewCountRepository(db, m),
		Serials:     mongoRepo.NewSerialRepository(db, m),
		Events:      mongoRepo.NewEventStore(db, eventFactory),
		Tx:          mongoRepo.NewTransactor(mongoClient),
		Locker:      locker,
		Audit:       mongoRepo.NewAuditLogRepository(db, m),
		Policy:      domain.NewAuditPolicy(cfg.AuditRoles),
		Metrics:     m,
		Logger:      logger,
		LockTTL:     cfg.Lock.TTL,
		BatchSize:   cfg.BulkBatchSize,
	}

	// Initialize and start outbox publisher
	var producer outbox.EventProducer = &outbox.LogProducer{Logger: logger}
	if cfg.Kafka.Enabled {
		kafkaProducer := kafka.NewProducer(cfg.KafkaProducerConfig())
		defer kafkaProducer.Close()
		producer = kafkaProducer
		logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	} else {
		logger.Warn("Kafka disabled, outbox events are written to the log")
	}

	outboxPublisher := outbox.NewPublisher(outboxMongo.NewOutboxRepository(db), producer, logger, m, outbox.DefaultPublisherConfig())
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		return err
	}
	defer func() {
		if err := outboxPublisher.Stop(); err != nil {
			logger.WithError(err).Warn("Failed to stop outbox publisher")
		}
	}()
	logger.Info("Outbox publisher started")

	// Initialize application services
	erpClient := erp.NewClient(erp.Config{
		BaseURL: cfg.ERP.BaseURL,
		Timeout: cfg.ERP.Timeout,
	}, logger, m)

	serialService := application.NewSerialService(deps)
	lifecycleService := application.NewLifecycleService(deps, serialService)
	countService := application.NewCountService(deps)
	queryService := application.NewQueryService(deps)
	migrationService := application.NewMigrationService(deps, erpClient, application.MigrationConfig{
		BatchSize: cfg.ERP.BatchSize,
	})

	// Setup Gin router with middleware
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))

	// Handle 404 and 405 errors
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	// Idempotent retries for mutating requests
	idempotencyConfig := idempotency.DefaultConfig(idempotency.NewMongoStore(db), logger.Logger)
	idempotencyConfig.Metrics = m

	handlers.SetupRoutes(router, &handlers.Handlers{
		Inventory:   handlers.NewInventoryHandler(lifecycleService, queryService, migrationService, logger),
		Count:       handlers.NewCountHandler(countService, queryService, logger),
		Serial:      handlers.NewSerialHandler(serialService, logger),
		Idempotency: idempotency.Middleware(idempotencyConfig),
	})

	// Start server
	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ERP.Timeout + 30*time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	// Wait for interrupt signal
	<-signalCh
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
	return nil
}

// newLocker returns the configured lock backend and its release function
func newLocker(ctx context.Context, cfg *config.Config) (domain.Locker, func(), error) {
	if cfg.Lock.Backend == config.LockBackendLocal {
		return locking.NewLocalLocker(cfg.Lock.WaitTimeout), func() {}, nil
	}

	rdb, err := locking.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return locking.NewRedisLocker(rdb, cfg.Lock.WaitTimeout), func() { _ = rdb.Close() }, nil
}
