package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) List(userID string) ([]domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, course_id, qty, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at ASC, course_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.UserID, &item.CourseID, &item.Qty, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return items, nil
}

func (r *cartRepository) Add(item domain.CartItem) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, course_id, qty, added_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id, course_id)
		DO UPDATE SET qty = EXCLUDED.qty
	`, item.UserID, item.CourseID, item.Qty, item.AddedAt); err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	return nil
}

func (r *cartRepository) Remove(userID, courseID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2
	`, userID, courseID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
