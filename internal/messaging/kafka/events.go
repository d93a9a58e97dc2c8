package kafka

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topics для Kafka
const (
	TopicPurchaseEvents  = "edupay.purchase.events"
	TopicDeadLetterQueue = "edupay.dlq" // Dead Letter Queue для failed messages
)

// Envelope — формат сообщения в purchase-топике. Payload несёт
// типизированное событие (OrderCreated, OrderCompleted, EnrollmentGranted),
// ключ партиционирования — aggregate_id.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OrderCreatedEvent — заказ оформлен, checkout-сессия открыта.
type OrderCreatedEvent struct {
	OrderID     string   `json:"order_id"`
	UserID      string   `json:"user_id"`
	AmountMinor int64    `json:"amount_minor"`
	Currency    string   `json:"currency"`
	CourseIDs   []string `json:"course_ids"`
}

// OrderCompletedEvent — заказ оплачен и исполнен.
type OrderCompletedEvent struct {
	OrderID     string   `json:"order_id"`
	UserID      string   `json:"user_id"`
	AmountMinor int64    `json:"amount_minor"`
	CourseIDs   []string `json:"course_ids"`
}

// EnrollmentGrantedEvent — пользователю выданы доступы к курсам.
type EnrollmentGrantedEvent struct {
	UserID    string   `json:"user_id"`
	CourseIDs []string `json:"course_ids"`
	OrderID   string   `json:"order_id,omitempty"`
}

// ParseEnvelope разбирает сообщение purchase-топика.
func ParseEnvelope(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal purchase envelope: %w", err)
	}
	return envelope, nil
}

// ParseOrderCompleted извлекает OrderCompletedEvent из envelope.
func ParseOrderCompleted(envelope Envelope) (OrderCompletedEvent, error) {
	var event OrderCompletedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return OrderCompletedEvent{}, fmt.Errorf("unmarshal order completed event: %w", err)
	}
	return event, nil
}

// ParseEnrollmentGranted извлекает EnrollmentGrantedEvent из envelope.
func ParseEnrollmentGranted(envelope Envelope) (EnrollmentGrantedEvent, error) {
	var event EnrollmentGrantedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return EnrollmentGrantedEvent{}, fmt.Errorf("unmarshal enrollment granted event: %w", err)
	}
	return event, nil
}
