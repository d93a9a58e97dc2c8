package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type cartRepositoryInMemory struct {
	store *Store
}

// NewCartRepository возвращает in-memory реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepositoryInMemory{store: store}
}

func (r *cartRepositoryInMemory) List(userID string) ([]domain.CartItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cart := r.store.carts[userID]
	items := make([]domain.CartItem, 0, len(cart))
	for _, item := range cart {
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.Before(items[j].AddedAt)
		}
		return items[i].CourseID < items[j].CourseID
	})

	return items, nil
}

func (r *cartRepositoryInMemory) Add(item domain.CartItem) error {
	if item.UserID == "" {
		return domain.ErrUserRequired
	}
	if item.CourseID == "" {
		return domain.ErrItemCourseRequired
	}
	if item.Qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cart, ok := r.store.carts[item.UserID]
	if !ok {
		cart = make(map[string]domain.CartItem)
		r.store.carts[item.UserID] = cart
	}
	if existing, ok := cart[item.CourseID]; ok {
		// Повторное добавление меняет количество, но сохраняет исходный порядок.
		existing.Qty = item.Qty
		cart[item.CourseID] = existing
		return nil
	}
	cart[item.CourseID] = item

	return nil
}

func (r *cartRepositoryInMemory) Remove(userID, courseID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if cart, ok := r.store.carts[userID]; ok {
		delete(cart, courseID)
	}
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
