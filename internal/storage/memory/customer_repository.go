package memory

import (
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type customerRepositoryInMemory struct {
	store *Store
}

// NewCustomerRepository возвращает in-memory реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepositoryInMemory{store: store}
}

func (r *customerRepositoryInMemory) Get(userID string) (domain.GatewayCustomer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.customers[userID]
	if !ok {
		return domain.GatewayCustomer{}, domain.ErrCustomerNotFound
	}
	return rec, nil
}

// Save сохраняет соответствие. При гонке выживает первая запись.
func (r *customerRepositoryInMemory) Save(rec domain.GatewayCustomer) (domain.GatewayCustomer, error) {
	if rec.UserID == "" {
		return domain.GatewayCustomer{}, domain.ErrUserRequired
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.customers[rec.UserID]; ok {
		return existing, nil
	}
	r.store.customers[rec.UserID] = rec

	return rec, nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
