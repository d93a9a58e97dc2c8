package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
	"github.com/vladislavdragonenkov/edupay/internal/service/checkout"
	"github.com/vladislavdragonenkov/edupay/internal/service/fulfillment"
)

const (
	defaultSignatureHeader = "X-Payment-Signature"
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultMaxBodyBytes    = 1 << 20 // 1 MiB
)

// Config задаёт параметры HTTP API.
type Config struct {
	// JWTSecret включает Bearer-аутентификацию. Пустой секрет переводит API
	// в dev-режим с идентификацией по заголовку X-User-ID.
	JWTSecret string
	// SignatureHeader — заголовок с подписью входящих webhook-запросов.
	SignatureHeader string
	// IdempotencyTTL — срок жизни Idempotency-Key при создании заказов.
	IdempotencyTTL time.Duration
	// MaxBodyBytes ограничивает размер тела запроса.
	MaxBodyBytes int64
}

// Server — HTTP-слой покупочного цикла: корзина, оформление заказов,
// webhook провайдера и административная выдача доступов.
type Server struct {
	cfg         Config
	checkout    *checkout.Service
	engine      *fulfillment.Engine
	orders      domain.OrderRepository
	carts       domain.CartRepository
	catalog     domain.CourseCatalog
	enrollments domain.EnrollmentRepository
	idempotency domain.IdempotencyRepository
	log         *logrus.Entry
}

// NewServer создаёт HTTP API поверх сервисов checkout и fulfillment.
func NewServer(
	cfg Config,
	checkoutSvc *checkout.Service,
	engine *fulfillment.Engine,
	orders domain.OrderRepository,
	carts domain.CartRepository,
	catalog domain.CourseCatalog,
	enrollments domain.EnrollmentRepository,
	idempotency domain.IdempotencyRepository,
	log *logrus.Entry,
) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = defaultSignatureHeader
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Server{
		cfg:         cfg,
		checkout:    checkoutSvc,
		engine:      engine,
		orders:      orders,
		carts:       carts,
		catalog:     catalog,
		enrollments: enrollments,
		idempotency: idempotency,
		log:         log.WithField("component", "httpapi"),
	}
}

// Router собирает chi-маршрутизатор API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook аутентифицируется подписью, не пользовательским токеном.
		r.Post("/webhooks/payment", s.handlePaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/courses/{courseID}", s.handleGetCourse)

			r.Get("/cart", s.handleGetCart)
			r.Post("/cart/items", s.handleAddCartItem)
			r.Delete("/cart/items/{courseID}", s.handleRemoveCartItem)

			r.Post("/orders", s.handleCreateOrder)
			r.Post("/orders/direct", s.handleCreateDirectOrder)
			r.Get("/orders", s.handleListOrders)
			r.Get("/orders/{orderID}", s.handleGetOrder)
			r.Post("/orders/{orderID}/confirm", s.handleConfirmOrder)

			r.Get("/enrollments", s.handleListEnrollments)

			r.Post("/admin/enrollments", s.requireAdmin(s.handleAdminGrant))
		})
	})

	return r
}
