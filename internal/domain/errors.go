package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка отсутствующего курса в позиции заказа.
	ErrItemCourseRequired = errors.New("item course_id is required")
	// Ошибка при некорректном количестве (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")

	// ErrEmptyCart возвращается, когда после фильтрации недоступных курсов
	// в корзине не осталось ни одной покупаемой позиции.
	ErrEmptyCart = errors.New("cart is empty or its courses are no longer available")
	// ErrOrderNotFound возвращается, если заказ не найден ни по ID, ни по сессии.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCourseNotFound возвращается, если курс отсутствует в каталоге.
	ErrCourseNotFound = errors.New("course not found")
	// ErrEnrollmentNotFound возвращается, если запись о доступе отсутствует.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrCustomerNotFound возвращается, если для пользователя нет внешнего customer id.
	ErrCustomerNotFound = errors.New("gateway customer not found")

	// ErrInvalidSignature — подпись входящего сигнала не прошла проверку.
	// Security-sensitive: обработка прекращается до любых изменений состояния.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedSignal — тело сигнала не разбирается. Повтор доставки
	// бессмыслен, провайдеру отвечают 4xx, а не 5xx.
	ErrMalformedSignal = errors.New("malformed webhook payload")
	// ErrGatewayUnavailable — транспортная или auth-ошибка платёжного провайдера.
	// Создание заказа при этом прерывается целиком, повтор безопасен.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrSessionNotPaid — провайдер сообщает, что checkout-сессия ещё не оплачена.
	ErrSessionNotPaid = errors.New("checkout session is not paid")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with a different request")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к классу "объект не найден".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCourseNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}
