package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
	"github.com/vladislavdragonenkov/edupay/internal/metrics"
)

// CustomerDirectory выдаёт внешний customer id для пользователя.
type CustomerDirectory interface {
	EnsureCustomer(ctx context.Context, userID, email, displayName string) (string, error)
}

// Service собирает заказы из корзины и открывает checkout-сессии.
type Service struct {
	orders    domain.OrderRepository
	carts     domain.CartRepository
	catalog   domain.CourseCatalog
	gateway   domain.PaymentGateway
	directory CustomerDirectory
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	metrics   *metrics.PurchaseMetrics
	log       *logrus.Entry
	now       func() time.Time
}

// NewService создаёт сервис оформления заказов.
func NewService(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	catalog domain.CourseCatalog,
	gw domain.PaymentGateway,
	directory CustomerDirectory,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	purchaseMetrics *metrics.PurchaseMetrics,
	log *logrus.Entry,
) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		orders:    orders,
		carts:     carts,
		catalog:   catalog,
		gateway:   gw,
		directory: directory,
		outbox:    outbox,
		timeline:  timeline,
		metrics:   purchaseMetrics,
		log:       log.WithField("component", "checkout"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder превращает корзину пользователя в pending-заказ с открытой
// checkout-сессией. Недоступные курсы молча отфильтровываются; пустой
// остаток — ErrEmptyCart. Цены снимаются в момент вызова и больше не меняются.
func (s *Service) CreateOrder(ctx context.Context, userID, email string) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	cartItems, err := s.carts.List(userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("list cart: %w", err)
	}

	courseIDs := make([]string, 0, len(cartItems))
	qtyByCourse := make(map[string]int32, len(cartItems))
	for _, item := range cartItems {
		courseIDs = append(courseIDs, item.CourseID)
		qtyByCourse[item.CourseID] = item.Qty
	}

	courses, err := s.catalog.PublishedByIDs(courseIDs)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load courses: %w", err)
	}
	if len(courses) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	return s.createOrder(ctx, userID, email, courses, qtyByCourse)
}

// CreateDirectOrder оформляет покупку одного курса мимо корзины
// (кнопка "купить сейчас" на странице курса).
func (s *Service) CreateDirectOrder(ctx context.Context, userID, email, courseID string) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if courseID == "" {
		return domain.Order{}, domain.ErrItemCourseRequired
	}

	courses, err := s.catalog.PublishedByIDs([]string{courseID})
	if err != nil {
		return domain.Order{}, fmt.Errorf("load course: %w", err)
	}
	if len(courses) == 0 {
		return domain.Order{}, domain.ErrCourseNotFound
	}

	return s.createOrder(ctx, userID, email, courses, map[string]int32{courseID: 1})
}

func (s *Service) createOrder(ctx context.Context, userID, email string, courses []domain.Course, qtyByCourse map[string]int32) (domain.Order, error) {
	started := s.now()

	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		Currency:  courses[0].Currency,
		ExpiresAt: started.Add(domain.DefaultOrderTTL),
		CreatedAt: started,
		UpdatedAt: started,
	}

	for _, course := range courses {
		qty := qtyByCourse[course.ID]
		if qty <= 0 {
			qty = 1
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         uuid.NewString(),
			CourseID:   course.ID,
			Qty:        qty,
			PriceMinor: course.PriceMinor,
			CreatedAt:  started,
		})
		order.AmountMinor += int64(qty) * course.PriceMinor
	}

	if errs := order.ValidateInvariants(); len(errs) != 0 {
		return domain.Order{}, fmt.Errorf("order invariants violated: %v", errs)
	}

	externalCustomerID, err := s.directory.EnsureCustomer(ctx, userID, email, "")
	if err != nil {
		return domain.Order{}, err
	}

	// Сессия создаётся до записи заказа: при отказе провайдера состояние
	// платформы не меняется вовсе, корзина остаётся нетронутой.
	session, err := s.gateway.CreateCheckoutSession(ctx, order, externalCustomerID)
	if err != nil {
		return domain.Order{}, err
	}
	order.PaymentMethod = s.gateway.Name()
	order.SessionID = session.SessionID
	order.PaymentURL = session.RedirectURL

	if err := s.orders.CreateFromCart(order); err != nil {
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	s.recordCreated(order)
	s.metrics.RecordOrderCreated()
	s.metrics.RecordCheckoutDuration(s.now().Sub(started))

	s.log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"user_id":      userID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order created")

	return order, nil
}

type orderCreatedPayload struct {
	OrderID     string   `json:"order_id"`
	UserID      string   `json:"user_id"`
	AmountMinor int64    `json:"amount_minor"`
	Currency    string   `json:"currency"`
	CourseIDs   []string `json:"course_ids"`
}

// recordCreated пишет событие в timeline и outbox. Сбои здесь не
// откатывают уже созданный заказ, только логируются.
func (s *Service) recordCreated(order domain.Order) {
	if err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     "order.created",
		Occurred: s.now(),
	}); err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("append timeline event failed")
	} else {
		s.metrics.RecordTimelineEvent()
	}

	payload, err := json.Marshal(orderCreatedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		CourseIDs:   order.CourseIDs(),
	})
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("encode outbox payload failed")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "OrderCreated",
		Payload:       payload,
	}); err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("enqueue outbox event failed")
		return
	}
	s.metrics.RecordOutboxEvent()
}
