package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// MockGateway — детерминированная реализация PaymentGateway для локального
// цикла разработки и тестов. Сессии и покупатели живут только в памяти,
// деньги никуда не уходят.
type MockGateway struct {
	mu sync.Mutex

	// Инъекции ошибок для тестов.
	CreateSessionErr  error
	RetrieveErr       error
	CreateCustomerErr error

	// SessionPaid управляет ответом RetrieveSession (по умолчанию оплачено).
	SessionPaid bool

	CreateSessionCalls  int
	RetrieveCalls       int
	CreateCustomerCalls int

	sessions map[string]domain.Order
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		SessionPaid: true,
		sessions:    make(map[string]domain.Order),
	}
}

// Name возвращает код адаптера.
func (m *MockGateway) Name() string {
	return "mock"
}

// CreateCheckoutSession выдаёт детерминированную сессию по ID заказа.
func (m *MockGateway) CreateCheckoutSession(_ context.Context, order domain.Order, _ string) (domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateSessionCalls++
	if m.CreateSessionErr != nil {
		return domain.CheckoutSession{}, m.CreateSessionErr
	}

	sessionID := "mock_cs_" + order.ID
	m.sessions[sessionID] = order

	return domain.CheckoutSession{
		SessionID:   sessionID,
		RedirectURL: "https://checkout.mock.local/pay/" + sessionID,
	}, nil
}

// mockSignalPayload — формат webhook-тела, который понимает mock.
type mockSignalPayload struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	AmountMinor int64  `json:"amount_minor"`
	PayerEmail  string `json:"payer_email"`
}

// VerifySignal у mock не требует подписи: любой валидный JSON принимается
// с Trust=TrustLow, как при незаданном секрете у live-адаптера.
func (m *MockGateway) VerifySignal(payload []byte, _ string) (domain.GatewayEvent, error) {
	var body mockSignalPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return domain.GatewayEvent{}, fmt.Errorf("decode mock signal: %v: %w", err, domain.ErrMalformedSignal)
	}

	return domain.GatewayEvent{
		Type:        mapEventType(body.Type),
		SessionID:   body.SessionID,
		AmountMinor: body.AmountMinor,
		PayerEmail:  body.PayerEmail,
		Trust:       domain.TrustLow,
	}, nil
}

// RetrieveSession отвечает по настроенному SessionPaid.
func (m *MockGateway) RetrieveSession(_ context.Context, sessionID string) (domain.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RetrieveCalls++
	if m.RetrieveErr != nil {
		return domain.SessionStatus{}, m.RetrieveErr
	}

	order, ok := m.sessions[sessionID]
	if !ok {
		return domain.SessionStatus{}, domain.ErrOrderNotFound
	}

	return domain.SessionStatus{
		Paid:        m.SessionPaid,
		AmountMinor: order.AmountMinor,
		PayerEmail:  "payer@mock.local",
	}, nil
}

// CreateCustomer выдаёт детерминированный внешний ID.
func (m *MockGateway) CreateCustomer(_ context.Context, userID, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCustomerCalls++
	if m.CreateCustomerErr != nil {
		return "", m.CreateCustomerErr
	}

	return "mock_cus_" + userID, nil
}

func mapEventType(raw string) domain.GatewayEventType {
	switch raw {
	case string(domain.GatewayEventCheckoutCompleted):
		return domain.GatewayEventCheckoutCompleted
	case string(domain.GatewayEventPaymentSucceeded):
		return domain.GatewayEventPaymentSucceeded
	default:
		return domain.GatewayEventUnknown
	}
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
