package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/app"
	"github.com/vladislavdragonenkov/edupay/internal/version"
)

// Переменные окружения сервиса.
const (
	envHTTPAddr    = "EDUPAY_HTTP_ADDR"
	envMetricsAddr = "EDUPAY_METRICS_ADDR"

	envStorageDriver       = "EDUPAY_STORAGE_DRIVER"
	envPostgresDSN         = "EDUPAY_POSTGRES_DSN"
	envPostgresAutoMigrate = "EDUPAY_POSTGRES_AUTO_MIGRATE"

	envRedisAddr       = "EDUPAY_REDIS_ADDR"
	envCatalogCacheTTL = "EDUPAY_CATALOG_CACHE_TTL"

	envKafkaBrokers = "EDUPAY_KAFKA_BROKERS"

	envGatewayDriver        = "EDUPAY_GATEWAY_DRIVER"
	envGatewayBaseURL       = "EDUPAY_GATEWAY_BASE_URL"
	envGatewayAPIKey        = "EDUPAY_GATEWAY_API_KEY"
	envGatewayWebhookSecret = "EDUPAY_GATEWAY_WEBHOOK_SECRET"
	envCheckoutSuccessURL   = "EDUPAY_CHECKOUT_SUCCESS_URL"
	envCheckoutCancelURL    = "EDUPAY_CHECKOUT_CANCEL_URL"

	envJWTSecret      = "EDUPAY_JWT_SECRET"
	envIdempotencyTTL = "EDUPAY_IDEMPOTENCY_TTL"

	envOutboxPollInterval = "EDUPAY_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "EDUPAY_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "EDUPAY_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "EDUPAY_OUTBOX_RETRY_DELAY"

	envIdempotencyCleanupInterval  = "EDUPAY_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "EDUPAY_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

type envLookup func(key string) (string, bool)

// readConfigFromEnv собирает конфигурацию поверх значений по умолчанию.
// Невалидные значения не прерывают запуск: поле остаётся дефолтным,
// а причина попадает в warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q: %v", key, value, err))
	}

	readString := func(key string, target *string) {
		if value, ok := lookup(key); ok {
			*target = strings.TrimSpace(value)
		}
	}
	readBool := func(key string, target *bool) {
		if value, ok := lookup(key); ok {
			parsed, err := parseBool(value)
			if err != nil {
				warn(key, value, err)
				return
			}
			*target = parsed
		}
	}
	readInt := func(key string, target *int, valid func(int) bool, reason string) {
		if value, ok := lookup(key); ok {
			parsed, err := parseInt(value, valid, reason)
			if err != nil {
				warn(key, value, err)
				return
			}
			*target = parsed
		}
	}
	readDuration := func(key string, target *time.Duration, valid func(time.Duration) bool, reason string) {
		if value, ok := lookup(key); ok {
			parsed, err := parseDuration(value, valid, reason)
			if err != nil {
				warn(key, value, err)
				return
			}
			*target = parsed
		}
	}

	readString(envHTTPAddr, &cfg.HTTPAddr)
	readString(envMetricsAddr, &cfg.MetricsAddr)

	if value, ok := lookup(envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(value))
	}
	readString(envPostgresDSN, &cfg.PostgresDSN)
	readBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	readString(envRedisAddr, &cfg.RedisAddr)
	readDuration(envCatalogCacheTTL, &cfg.CatalogCacheTTL,
		func(v time.Duration) bool { return v > 0 }, "must be > 0")

	readString(envKafkaBrokers, &cfg.KafkaBrokers)

	if value, ok := lookup(envGatewayDriver); ok {
		cfg.GatewayDriver = strings.ToLower(strings.TrimSpace(value))
	}
	readString(envGatewayBaseURL, &cfg.GatewayBaseURL)
	readString(envGatewayAPIKey, &cfg.GatewayAPIKey)
	readString(envGatewayWebhookSecret, &cfg.GatewayWebhookSecret)
	readString(envCheckoutSuccessURL, &cfg.CheckoutSuccessURL)
	readString(envCheckoutCancelURL, &cfg.CheckoutCancelURL)

	readString(envJWTSecret, &cfg.JWTSecret)
	readDuration(envIdempotencyTTL, &cfg.IdempotencyTTL,
		func(v time.Duration) bool { return v > 0 }, "must be > 0")

	readDuration(envOutboxPollInterval, &cfg.OutboxPollInterval,
		func(v time.Duration) bool { return v > 0 }, "must be > 0")
	readInt(envOutboxBatchSize, &cfg.OutboxBatchSize,
		func(v int) bool { return v > 0 }, "must be > 0")
	readInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts,
		func(v int) bool { return v > 0 }, "must be > 0")
	readDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay,
		func(v time.Duration) bool { return v >= 0 }, "must be >= 0")

	readDuration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval,
		func(v time.Duration) bool { return v > 0 }, "must be > 0")
	readInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize,
		func(v int) bool { return v > 0 }, "must be > 0")

	return cfg, warnings
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, errors.New("expected boolean value")
	}
}

func parseInt(value string, valid func(int) bool, reason string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.New("expected integer value")
	}
	if !valid(parsed) {
		return 0, errors.New(reason)
	}
	return parsed, nil
}

func parseDuration(value string, valid func(time.Duration) bool, reason string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.New("expected duration value")
	}
	if !valid(parsed) {
		return 0, errors.New(reason)
	}
	return parsed, nil
}

func main() {
	setupLogger()

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warnf("некорректное значение конфигурации, используется дефолт: %s", warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"gateway":      cfg.GatewayDriver,
		"version":      version.String(),
	}).Info("запускаем EduPay")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("EduPay остановлен")
}
