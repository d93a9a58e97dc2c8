package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/catalog"
	"github.com/vladislavdragonenkov/edupay/internal/health"
	"github.com/vladislavdragonenkov/edupay/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/edupay/internal/metrics"
	"github.com/vladislavdragonenkov/edupay/internal/service/checkout"
	"github.com/vladislavdragonenkov/edupay/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/edupay/internal/service/gateway"
	"github.com/vladislavdragonenkov/edupay/internal/service/httpapi"
	"github.com/vladislavdragonenkov/edupay/internal/service/idempotency"
	"github.com/vladislavdragonenkov/edupay/internal/service/outbox"
	"github.com/vladislavdragonenkov/edupay/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает сервис и блокируется до отмены контекста или фатальной
// ошибки одного из серверов. Отмена контекста — штатная остановка:
// серверы гасятся gracefully, фоновые воркеры дорабатывают цикл.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer func() {
		if deps.closeStorage != nil {
			if err := deps.closeStorage(); err != nil {
				logger.WithError(err).Error("close storage failed")
			}
		}
	}()

	gw, err := initPaymentGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("init payment gateway: %w", err)
	}

	healthHandler := health.NewHandler(version.Version())
	if deps.pingStorage != nil {
		healthHandler.Register("postgres", health.NewPingChecker("postgres", deps.pingStorage))
	}

	courseCatalog := deps.catalog
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()

		courseCatalog = catalog.NewCachedCatalog(deps.catalog, redisClient, cfg.CatalogCacheTTL, logger)
		healthHandler.Register("redis", health.NewPingChecker("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
		logger.WithField("addr", cfg.RedisAddr).Info("course catalog cache enabled")
	}

	purchaseMetrics := metrics.NewPurchaseMetrics()
	directory := gateway.NewCustomerDirectory(gw, deps.customers, logger)
	checkoutSvc := checkout.NewService(
		deps.orders, deps.carts, courseCatalog, gw, directory,
		deps.outboxRepo, deps.timelineRepo, purchaseMetrics, logger,
	)
	engine := fulfillment.NewEngine(
		deps.fulfillment, deps.orders, gw,
		deps.outboxRepo, deps.timelineRepo, purchaseMetrics, logger,
	)
	api := httpapi.NewServer(
		httpapi.Config{JWTSecret: cfg.JWTSecret, IdempotencyTTL: cfg.IdempotencyTTL},
		checkoutSvc, engine,
		deps.orders, deps.carts, courseCatalog, deps.enrollments, deps.idempotencyRepo,
		logger,
	)

	// Недоступная Kafka не блокирует приём заказов: outbox хранит события,
	// публикация начнётся после рестарта с рабочими брокерами.
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Error("kafka is unavailable, events will stay in the outbox")
	}
	defer closeKafka(producer, logger)

	var wg sync.WaitGroup
	if producer != nil {
		worker := outbox.NewWorker(
			deps.outboxRepo,
			kafka.NewOutboxPublisher(producer, kafka.TopicPurchaseEvents),
			outbox.WithLogger(logger),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	cleanup := idempotency.NewCleanupWorker(
		deps.idempotencyRepo,
		idempotency.WithLogger(logger),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(ctx)
	}()

	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: newOpsMux(healthHandler),
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http api listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("http api server: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = err
		logger.WithError(err).Error("server failed")
	}

	shutdownHTTP(apiServer, "http api", logger)
	shutdownHTTP(metricsServer, "metrics", logger)
	wg.Wait()

	logger.Info("application stopped")
	return runErr
}

// newOpsMux собирает служебный mux: метрики, health-пробы и версия сборки.
func newOpsMux(healthHandler *health.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})
	return mux
}

func shutdownHTTP(server *http.Server, name string, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).WithField("server", name).Error("graceful shutdown failed")
	}
}
