package app

import "time"

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Драйверы платёжного шлюза.
const (
	GatewayDriverMock = "mock"
	GatewayDriverLive = "live"
)

// Config — конфигурация приложения. Значения читаются из окружения
// в cmd/edupay и передаются сюда уже готовыми.
type Config struct {
	// HTTPAddr — адрес публичного API.
	HTTPAddr string
	// MetricsAddr — адрес служебного сервера: /metrics, /healthz, /livez.
	MetricsAddr string

	// StorageDriver выбирает хранилище: memory или postgres.
	StorageDriver string
	// PostgresDSN обязателен при StorageDriver=postgres.
	PostgresDSN string
	// PostgresAutoMigrate применяет миграции при старте.
	PostgresAutoMigrate bool

	// RedisAddr включает кэш каталога курсов. Пустое значение — без кэша.
	RedisAddr string
	// CatalogCacheTTL — срок жизни записи каталога в кэше.
	CatalogCacheTTL time.Duration

	// KafkaBrokers — список брокеров через запятую. Пустое значение
	// отключает публикацию событий, outbox продолжает накапливать записи.
	KafkaBrokers string

	// GatewayDriver выбирает платёжный шлюз: mock или live.
	GatewayDriver string
	// Параметры live-шлюза.
	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayWebhookSecret string
	CheckoutSuccessURL   string
	CheckoutCancelURL    string

	// JWTSecret включает Bearer-аутентификацию API. Пустой секрет —
	// dev-режим с идентификацией по заголовкам.
	JWTSecret string
	// IdempotencyTTL — срок жизни ключей идемпотентности создания заказов.
	IdempotencyTTL time.Duration

	// Настройки outbox-воркера.
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	// Настройки очистки просроченных ключей идемпотентности.
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// память вместо БД, mock-шлюз, без Kafka и Redis.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:      ":8080",
		MetricsAddr:   ":9090",
		StorageDriver: StorageDriverMemory,
		GatewayDriver: GatewayDriverMock,

		CatalogCacheTTL: 5 * time.Minute,
		IdempotencyTTL:  24 * time.Hour,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}
