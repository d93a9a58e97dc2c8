package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
	"github.com/vladislavdragonenkov/edupay/internal/metrics"
)

// Триггеры исполнения, попадающие в метрики и timeline.
const (
	TriggerWebhook = "webhook"
	TriggerConfirm = "confirm"
	TriggerAdmin   = "admin"
)

// Engine исполняет оплаченные заказы: переводит их в completed, выдаёт
// доступы и публикует события. Вся идемпотентность живёт в FulfillmentStore,
// Engine добавляет к ней наблюдаемость и побочные события.
type Engine struct {
	store    domain.FulfillmentStore
	orders   domain.OrderRepository
	gateway  domain.PaymentGateway
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.PurchaseMetrics
	log      *logrus.Entry
	now      func() time.Time
}

// NewEngine создаёт движок исполнения заказов.
func NewEngine(
	store domain.FulfillmentStore,
	orders domain.OrderRepository,
	gw domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	purchaseMetrics *metrics.PurchaseMetrics,
	log *logrus.Entry,
) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		store:    store,
		orders:   orders,
		gateway:  gw,
		outbox:   outbox,
		timeline: timeline,
		metrics:  purchaseMetrics,
		log:      log.WithField("component", "fulfillment"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Fulfill исполняет заказ по ссылке. Повторные вызовы по уже исполненному
// заказу — штатный no-op: AlreadyProcessed=true, ошибок и побочных
// эффектов нет.
func (e *Engine) Fulfill(ref domain.OrderRef, trigger string) (domain.FulfillmentResult, error) {
	started := e.now()
	e.metrics.RecordFulfillmentInFlightStarted()
	defer e.metrics.RecordFulfillmentInFlightFinished()

	result, err := e.store.Complete(ref)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			e.metrics.RecordFulfillmentFailed()
		}
		return domain.FulfillmentResult{}, err
	}

	if result.AlreadyProcessed {
		e.metrics.RecordFulfillmentNoop()
		e.log.WithFields(logrus.Fields{
			"order_id": result.Order.ID,
			"status":   result.Order.Status,
			"trigger":  trigger,
		}).Info("order already processed, skipping")
		return result, nil
	}

	e.metrics.RecordOrderCompleted()
	e.metrics.RecordEnrollmentsGranted(len(result.GrantedCourseIDs))
	e.metrics.RecordFulfillmentDuration(trigger, e.now().Sub(started))

	e.appendTimeline(result.Order.ID, "order.completed", trigger)
	e.publishCompleted(result)

	e.log.WithFields(logrus.Fields{
		"order_id": result.Order.ID,
		"user_id":  result.Order.UserID,
		"granted":  len(result.GrantedCourseIDs),
		"trigger":  trigger,
	}).Info("order fulfilled")

	return result, nil
}

// ProcessSignal обрабатывает входящий сигнал провайдера. Возвращает
// handled=false для информационных и нераспознанных типов: такие сигналы
// подтверждаются без обработки, чтобы провайдер их не ретраил.
func (e *Engine) ProcessSignal(payload []byte, signature string) (domain.FulfillmentResult, bool, error) {
	event, err := e.gateway.VerifySignal(payload, signature)
	if err != nil {
		e.metrics.RecordWebhookRejected()
		return domain.FulfillmentResult{}, false, err
	}

	switch event.Type {
	case domain.GatewayEventCheckoutCompleted:
		if event.SessionID == "" {
			e.metrics.RecordWebhookRejected()
			return domain.FulfillmentResult{}, false, fmt.Errorf("signal without session id: %w", domain.ErrOrderNotFound)
		}
		result, err := e.Fulfill(domain.BySessionID(event.SessionID), TriggerWebhook)
		if err != nil {
			return domain.FulfillmentResult{}, false, err
		}
		return result, true, nil
	case domain.GatewayEventPaymentSucceeded:
		// Информационное подтверждение: исполнение уже произошло (или
		// произойдёт) по checkout.completed.
		e.log.WithField("session_id", event.SessionID).Debug("payment confirmation acknowledged")
		return domain.FulfillmentResult{}, false, nil
	default:
		e.log.WithField("session_id", event.SessionID).Debug("unknown signal type acknowledged")
		return domain.FulfillmentResult{}, false, nil
	}
}

// Confirm — клиентская сверка после возврата со страницы оплаты. Сначала
// смотрим своё состояние, затем спрашиваем провайдера и исполняем заказ,
// только если сессия действительно оплачена.
func (e *Engine) Confirm(ctx context.Context, ref domain.OrderRef) (domain.FulfillmentResult, error) {
	order, err := e.orders.GetByRef(ref)
	if err != nil {
		return domain.FulfillmentResult{}, err
	}

	if order.Status != domain.OrderStatusPending {
		return domain.FulfillmentResult{Order: order, AlreadyProcessed: true}, nil
	}
	if order.SessionID == "" {
		return domain.FulfillmentResult{}, domain.ErrSessionNotPaid
	}

	status, err := e.gateway.RetrieveSession(ctx, order.SessionID)
	if err != nil {
		return domain.FulfillmentResult{}, err
	}
	if !status.Paid {
		return domain.FulfillmentResult{}, domain.ErrSessionNotPaid
	}

	return e.Fulfill(domain.ByOrderID(order.ID), TriggerConfirm)
}

// Grant выдаёт доступ к курсу вне платёжного цикла (административный
// override). Существующий доступ делает вызов no-op без событий.
func (e *Engine) Grant(userID, courseID, orderID string) (bool, error) {
	created, err := e.store.Grant(userID, courseID, orderID)
	if err != nil {
		return false, err
	}
	if !created {
		e.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"course_id": courseID,
		}).Info("enrollment already exists, grant skipped")
		return false, nil
	}

	e.metrics.RecordEnrollmentsGranted(1)
	if orderID != "" {
		e.appendTimeline(orderID, "enrollment.granted", TriggerAdmin)
	}
	e.publishGranted(userID, []string{courseID}, orderID)

	e.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"course_id": courseID,
		"order_id":  orderID,
	}).Info("enrollment granted")

	return true, nil
}

func (e *Engine) appendTimeline(orderID, eventType, reason string) {
	if err := e.timeline.Append(domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: e.now(),
	}); err != nil {
		e.log.WithError(err).WithField("order_id", orderID).Warn("append timeline event failed")
		return
	}
	e.metrics.RecordTimelineEvent()
}

type orderCompletedPayload struct {
	OrderID     string   `json:"order_id"`
	UserID      string   `json:"user_id"`
	AmountMinor int64    `json:"amount_minor"`
	CourseIDs   []string `json:"course_ids"`
}

type enrollmentGrantedPayload struct {
	UserID    string   `json:"user_id"`
	CourseIDs []string `json:"course_ids"`
	OrderID   string   `json:"order_id,omitempty"`
}

func (e *Engine) publishCompleted(result domain.FulfillmentResult) {
	payload, err := json.Marshal(orderCompletedPayload{
		OrderID:     result.Order.ID,
		UserID:      result.Order.UserID,
		AmountMinor: result.Order.AmountMinor,
		CourseIDs:   result.Order.CourseIDs(),
	})
	if err != nil {
		e.log.WithError(err).Warn("encode order completed payload failed")
		return
	}

	if _, err := e.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   result.Order.ID,
		EventType:     "OrderCompleted",
		Payload:       payload,
	}); err != nil {
		e.log.WithError(err).WithField("order_id", result.Order.ID).Warn("enqueue order completed failed")
	} else {
		e.metrics.RecordOutboxEvent()
	}

	if len(result.GrantedCourseIDs) > 0 {
		e.publishGranted(result.Order.UserID, result.GrantedCourseIDs, result.Order.ID)
	}
}

func (e *Engine) publishGranted(userID string, courseIDs []string, orderID string) {
	payload, err := json.Marshal(enrollmentGrantedPayload{
		UserID:    userID,
		CourseIDs: courseIDs,
		OrderID:   orderID,
	})
	if err != nil {
		e.log.WithError(err).Warn("encode enrollment granted payload failed")
		return
	}

	if _, err := e.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "enrollment",
		AggregateID:   userID,
		EventType:     "EnrollmentGranted",
		Payload:       payload,
	}); err != nil {
		e.log.WithError(err).WithField("user_id", userID).Warn("enqueue enrollment granted failed")
		return
	}
	e.metrics.RecordOutboxEvent()
}
