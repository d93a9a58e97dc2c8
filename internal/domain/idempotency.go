package domain

import "time"

// IdempotencyStatus описывает жизненный цикл ключа Idempotency-Key,
// которым клиент защищает создание заказа от случайного дубля.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — заказ по этому ключу ещё оформляется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — заказ создан, сохранённый ответ отдаётся на повторы.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — оформление завершилось ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord хранит результат оформления заказа под ключом:
// хэш исходного запроса (защита от переиспользования ключа с другим телом)
// и HTTP-ответ, который возвращается при повторной доставке.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}
