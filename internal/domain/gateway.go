package domain

import "context"

// SignalTrust отражает степень доверия к входящему сигналу провайдера.
type SignalTrust string

const (
	// TrustVerified — подпись сигнала проверена по общему секрету.
	TrustVerified SignalTrust = "verified"
	// TrustLow — секрет не сконфигурирован, payload принят без подписи.
	// Явный режим пониженного доверия для локальной разработки.
	TrustLow SignalTrust = "low"
)

// GatewayEventType — тип события, извлечённого из сигнала провайдера.
type GatewayEventType string

const (
	// GatewayEventCheckoutCompleted — hosted checkout завершён, заказ можно исполнять.
	GatewayEventCheckoutCompleted GatewayEventType = "checkout.completed"
	// GatewayEventPaymentSucceeded — информационное подтверждение списания.
	// Исполнение уже произошло по checkout.completed, мутаций не вызывает.
	GatewayEventPaymentSucceeded GatewayEventType = "payment.succeeded"
	// GatewayEventUnknown — нераспознанный тип; подтверждается без обработки.
	GatewayEventUnknown GatewayEventType = "unknown"
)

// GatewayEvent — проверенный и распарсенный сигнал платёжного провайдера.
type GatewayEvent struct {
	Type        GatewayEventType
	SessionID   string
	AmountMinor int64
	PayerEmail  string
	Trust       SignalTrust
}

// CheckoutSession описывает созданную у провайдера hosted checkout сессию.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// SessionStatus — текущее состояние checkout-сессии по данным провайдера.
type SessionStatus struct {
	Paid        bool
	AmountMinor int64
	PayerEmail  string
}

// PaymentGateway — единый интерфейс платёжного провайдера. Реализации: mock
// (детерминированный, для локального цикла без реального процессинга) и live
// (hosted checkout с асинхронными webhook-сигналами). Экземпляр конструируется
// один раз на старте процесса и передаётся зависимостям явно.
type PaymentGateway interface {
	// Name возвращает код адаптера, сохраняемый в Order.PaymentMethod.
	Name() string
	// CreateCheckoutSession создаёт hosted checkout для заказа.
	// Возвращает ErrGatewayUnavailable при транспортных и auth-ошибках.
	CreateCheckoutSession(ctx context.Context, order Order, externalCustomerID string) (CheckoutSession, error)
	// VerifySignal аутентифицирует входящий payload по подписи.
	// При сконфигурированном секрете неверная подпись даёт ErrInvalidSignature;
	// без секрета payload принимается с Trust=TrustLow.
	VerifySignal(payload []byte, signature string) (GatewayEvent, error)
	// RetrieveSession запрашивает у провайдера состояние сессии.
	RetrieveSession(ctx context.Context, sessionID string) (SessionStatus, error)
	// CreateCustomer регистрирует покупателя у провайдера и возвращает его внешний ID.
	CreateCustomer(ctx context.Context, userID, email, displayName string) (string, error)
}
