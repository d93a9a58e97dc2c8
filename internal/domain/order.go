package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на курсы.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted — оплата подтверждена, доступы выданы. Терминальный статус.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusExpired — срок оплаты истёк. Достижим только из pending.
	OrderStatusExpired OrderStatus = "expired"
	// OrderStatusFailed — оплата завершилась ошибкой. Достижим только из pending.
	OrderStatusFailed OrderStatus = "failed"
)

// Terminal сообщает, допускает ли статус дальнейшие переходы.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusExpired, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа: снимок цены курса на момент создания.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// CourseID — идентификатор курса в каталоге.
	CourseID string
	// Qty — количество единиц (для курсов почти всегда 1).
	Qty int32
	// PriceMinor — цена за единицу в минимальных денежных единицах на момент создания заказа.
	// Последующие изменения цены в каталоге на эту запись не влияют.
	PriceMinor int64
	// CreatedAt фиксирует момент снимка.
	CreatedAt time.Time
}

// Order агрегирует намерение покупки: неизменяемый снимок корзины с фиксированной суммой.
type Order struct {
	ID          string
	UserID      string
	Status      OrderStatus
	Currency    string
	AmountMinor int64
	// PaymentMethod — код платёжного адаптера, через который создавалась checkout-сессия.
	PaymentMethod string
	// SessionID — идентификатор checkout-сессии у провайдера. Пустой, пока сессия не создана.
	SessionID string
	// PaymentURL — адрес hosted checkout, куда перенаправляется покупатель.
	PaymentURL string
	Items      []OrderItem
	// ExpiresAt записывается при создании (24 часа). Автоматический перевод в expired
	// не реализован: см. DESIGN.md, решение по открытому вопросу об экспирации.
	ExpiresAt time.Time
	// PaidAt заполняется один раз при переходе в completed.
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderRef адресует заказ либо по собственному ID, либо по ID checkout-сессии провайдера.
type OrderRef struct {
	OrderID   string
	SessionID string
}

// ByOrderID строит ссылку на заказ по его идентификатору.
func ByOrderID(id string) OrderRef { return OrderRef{OrderID: id} }

// BySessionID строит ссылку на заказ по идентификатору checkout-сессии.
func BySessionID(id string) OrderRef { return OrderRef{SessionID: id} }

// Empty сообщает, что ссылка не адресует ничего.
func (r OrderRef) Empty() bool { return r.OrderID == "" && r.SessionID == "" }

// DefaultOrderTTL — срок жизни неоплаченного заказа.
const DefaultOrderTTL = 24 * time.Hour

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.CourseID == "" {
			errs = append(errs, ErrItemCourseRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// CourseIDs возвращает идентификаторы курсов всех позиций заказа.
func (o *Order) CourseIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.CourseID)
	}
	return ids
}
