package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// Store — общее in-memory состояние для локальной разработки и тестов.
// Все репозитории пакета смотрят в один Store: исполнение заказа трогает
// сразу несколько "таблиц", и им нужна общая блокировка вместо
// транзакции PostgreSQL.
type Store struct {
	mu sync.RWMutex

	orders      map[string]domain.Order
	courses     map[string]domain.Course
	carts       map[string]map[string]domain.CartItem
	enrollments map[string]domain.Enrollment // ключ user_id + "\x00" + course_id
	customers   map[string]domain.GatewayCustomer

	outbox      map[string]outboxRecord
	outboxSeq   int64
	idempotency map[string]domain.IdempotencyRecord
	timeline    map[string][]domain.TimelineEvent
}

type outboxRecord struct {
	msg      domain.OutboxMessage
	status   string
	attempts int
	seq      int64 // порядковый номер вставки, для стабильной сортировки
	storedAt time.Time
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		orders:      make(map[string]domain.Order),
		courses:     make(map[string]domain.Course),
		carts:       make(map[string]map[string]domain.CartItem),
		enrollments: make(map[string]domain.Enrollment),
		customers:   make(map[string]domain.GatewayCustomer),
		outbox:      make(map[string]outboxRecord),
		idempotency: make(map[string]domain.IdempotencyRecord),
		timeline:    make(map[string][]domain.TimelineEvent),
	}
}

func enrollmentKey(userID, courseID string) string {
	return userID + "\x00" + courseID
}

// cloneOrder возвращает копию заказа с независимым слайсом позиций.
func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	if order.PaidAt != nil {
		paidAt := *order.PaidAt
		order.PaidAt = &paidAt
	}
	return order
}
