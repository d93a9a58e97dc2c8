package memory

import (
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository поверх Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// CreateFromCart сохраняет заказ и очищает соответствующие строки корзины
// под одной блокировкой, имитируя транзакцию PostgreSQL.
func (r *orderRepositoryInMemory) CreateFromCart(order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}

	r.store.orders[order.ID] = cloneOrder(order)

	if cart, ok := r.store.carts[order.UserID]; ok {
		for _, courseID := range order.CourseIDs() {
			delete(cart, courseID)
		}
	}

	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByRef резолвит заказ по ID либо по ID checkout-сессии.
func (r *orderRepositoryInMemory) GetByRef(ref domain.OrderRef) (domain.Order, error) {
	if ref.Empty() {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if ref.OrderID != "" {
		return r.Get(ref.OrderID)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, order := range r.store.orders {
		if order.SessionID != "" && order.SessionID == ref.SessionID {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (r *orderRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
