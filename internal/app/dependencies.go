package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
	"github.com/vladislavdragonenkov/edupay/internal/service/gateway"
	"github.com/vladislavdragonenkov/edupay/internal/storage/memory"
	"github.com/vladislavdragonenkov/edupay/internal/storage/postgres"
)

// runtimeDependencies — набор репозиториев, собранный под выбранный
// драйвер хранилища.
type runtimeDependencies struct {
	orders      domain.OrderRepository
	fulfillment domain.FulfillmentStore
	carts       domain.CartRepository
	catalog     domain.CourseCatalog
	customers   domain.CustomerRepository
	enrollments domain.EnrollmentRepository

	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository

	// pingStorage равен nil для memory-драйвера.
	pingStorage  func(context.Context) error
	closeStorage func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("storage initialized: memory")
		return &runtimeDependencies{
			orders:          memory.NewOrderRepository(store),
			fulfillment:     memory.NewFulfillmentStore(store),
			carts:           memory.NewCartRepository(store),
			catalog:         memory.NewCourseRepository(store),
			customers:       memory.NewCustomerRepository(store),
			enrollments:     memory.NewEnrollmentRepository(store),
			outboxRepo:      memory.NewOutboxRepository(store),
			timelineRepo:    memory.NewTimelineRepository(store),
			idempotencyRepo: memory.NewIdempotencyRepository(store),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres DSN is not configured")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}

		logger.Info("storage initialized: postgres")
		return &runtimeDependencies{
			orders:          postgres.NewOrderRepository(store),
			fulfillment:     postgres.NewFulfillmentStore(store),
			carts:           postgres.NewCartRepository(store),
			catalog:         postgres.NewCourseRepository(store),
			customers:       postgres.NewCustomerRepository(store),
			enrollments:     postgres.NewEnrollmentRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			pingStorage:     store.Ping,
			closeStorage:    store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

// initPaymentGateway выбирает адаптер платёжного провайдера.
func initPaymentGateway(cfg Config, logger *log.Entry) (domain.PaymentGateway, error) {
	switch cfg.GatewayDriver {
	case GatewayDriverMock, "":
		logger.Info("payment gateway: mock")
		return gateway.NewMockGateway(), nil

	case GatewayDriverLive:
		if cfg.GatewayBaseURL == "" {
			return nil, errors.New("gateway base URL is required for the live driver")
		}
		logger.WithField("base_url", cfg.GatewayBaseURL).Info("payment gateway: live")
		return gateway.NewLiveGateway(gateway.LiveConfig{
			BaseURL:       cfg.GatewayBaseURL,
			APIKey:        cfg.GatewayAPIKey,
			WebhookSecret: cfg.GatewayWebhookSecret,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		}, logger), nil

	default:
		return nil, fmt.Errorf("unsupported gateway driver: %q", cfg.GatewayDriver)
	}
}
