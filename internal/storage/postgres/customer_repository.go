package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Get(userID string) (domain.GatewayCustomer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var rec domain.GatewayCustomer
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, external_customer_id, created_at
		FROM gateway_customers
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.ExternalCustomerID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GatewayCustomer{}, domain.ErrCustomerNotFound
		}
		return domain.GatewayCustomer{}, fmt.Errorf("select gateway customer: %w", err)
	}

	return rec, nil
}

// Save регистрирует соответствие. При гонке двух создающих вызовов
// выживает первая запись: вставка с DO NOTHING и повторное чтение.
func (r *customerRepository) Save(rec domain.GatewayCustomer) (domain.GatewayCustomer, error) {
	if rec.UserID == "" {
		return domain.GatewayCustomer{}, domain.ErrUserRequired
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO gateway_customers (user_id, external_customer_id, created_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO NOTHING
	`, rec.UserID, rec.ExternalCustomerID, rec.CreatedAt)
	if err != nil {
		return domain.GatewayCustomer{}, fmt.Errorf("insert gateway customer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.GatewayCustomer{}, fmt.Errorf("gateway customer rows affected: %w", err)
	}
	if affected == 0 {
		return r.Get(rec.UserID)
	}

	return rec, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
