package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type fulfillmentStore struct {
	db *sql.DB
}

// NewFulfillmentStore создаёт PostgreSQL-реализацию FulfillmentStore.
func NewFulfillmentStore(store *Store) domain.FulfillmentStore {
	return &fulfillmentStore{db: store.DB()}
}

// Complete исполняет заказ в одной транзакции. Строка заказа берётся
// под FOR UPDATE: из конкурирующих вызовов ровно один увидит pending,
// остальные дождутся коммита и вернут AlreadyProcessed без мутаций.
func (s *fulfillmentStore) Complete(ref domain.OrderRef) (domain.FulfillmentResult, error) {
	if ref.Empty() {
		return domain.FulfillmentResult{}, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FulfillmentResult{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err := lockOrder(ctx, tx, ref)
	if err != nil {
		return domain.FulfillmentResult{}, err
	}

	if order.Status != domain.OrderStatusPending {
		// Идемпотентный no-op: повторный webhook, retry воркера или гонка
		// двух сигналов. Состояние не трогаем.
		if err = tx.Commit(); err != nil {
			return domain.FulfillmentResult{}, fmt.Errorf("commit noop fulfillment: %w", err)
		}
		return domain.FulfillmentResult{Order: order, AlreadyProcessed: true}, nil
	}

	now := time.Now().UTC()

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    paid_at = $3,
		    updated_at = $3
		WHERE id = $1
	`, order.ID, string(domain.OrderStatusCompleted), now); err != nil {
		return domain.FulfillmentResult{}, fmt.Errorf("complete order: %w", err)
	}

	granted := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		created, grantErr := grantTx(ctx, tx, order.UserID, item.CourseID, order.ID, now)
		if grantErr != nil {
			err = grantErr
			return domain.FulfillmentResult{}, err
		}
		if created {
			granted = append(granted, item.CourseID)
		}

		if _, err = tx.ExecContext(ctx, `
			DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2
		`, order.UserID, item.CourseID); err != nil {
			return domain.FulfillmentResult{}, fmt.Errorf("clear cart leftover: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.FulfillmentResult{}, fmt.Errorf("commit fulfillment: %w", err)
	}

	order.Status = domain.OrderStatusCompleted
	order.PaidAt = &now
	order.UpdatedAt = now

	return domain.FulfillmentResult{Order: order, GrantedCourseIDs: granted}, nil
}

// Grant выдаёт доступ вне платёжного цикла (админский override или ручная
// компенсация). Уже существующая запись делает вызов чистым no-op.
func (s *fulfillmentStore) Grant(userID, courseID, orderID string) (bool, error) {
	if userID == "" {
		return false, domain.ErrUserRequired
	}
	if courseID == "" {
		return false, domain.ErrItemCourseRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created, err := grantTx(ctx, tx, userID, courseID, orderID, time.Now().UTC())
	if err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit grant: %w", err)
	}

	return created, nil
}

// grantTx вставляет enrollment с защитой UNIQUE (user_id, course_id).
// Счётчик студентов курса растёт только вместе с фактической вставкой,
// так что он всегда равен числу различных записанных пользователей.
func grantTx(ctx context.Context, tx *sql.Tx, userID, courseID, orderID string, now time.Time) (bool, error) {
	var orderRef any
	if orderID != "" {
		orderRef = orderID
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO enrollments (
			id, user_id, course_id, order_id, status, progress_percent, started_at
		) VALUES ($1,$2,$3,$4,$5,0,$6)
		ON CONFLICT (user_id, course_id) DO NOTHING
	`,
		uuid.NewString(), userID, courseID, orderRef,
		string(domain.EnrollmentStatusActive), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enrollment rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE courses
		SET students_count = students_count + 1,
		    updated_at = $2
		WHERE id = $1
	`, courseID, now); err != nil {
		return false, fmt.Errorf("increment students count: %w", err)
	}

	return true, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, ref domain.OrderRef) (domain.Order, error) {
	where := `WHERE id = $1`
	arg := ref.OrderID
	if ref.OrderID == "" {
		where = `WHERE session_id = $1`
		arg = ref.SessionID
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, status, currency, amount_minor, payment_method,
		       session_id, payment_url, expires_at, paid_at, created_at, updated_at
		FROM orders
	`+where+`
		FOR UPDATE
	`, arg)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("lock order: %w", err)
	}

	items, err := loadItems(ctx, tx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

var _ domain.FulfillmentStore = (*fulfillmentStore)(nil)
