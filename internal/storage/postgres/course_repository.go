package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// NewCourseRepository создаёт PostgreSQL-реализацию каталога курсов.
func NewCourseRepository(store *Store) *CourseRepository {
	return &CourseRepository{db: store.DB()}
}

// CourseRepository — PostgreSQL-каталог курсов. Помимо читающего
// интерфейса ядра умеет сохранять курсы (используется в seed и тестах).
type CourseRepository struct {
	db *sql.DB
}

func (r *CourseRepository) Get(id string) (domain.Course, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var course domain.Course
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, price_minor, currency, published, students_count, created_at, updated_at
		FROM courses
		WHERE id = $1
	`, id).Scan(
		&course.ID, &course.Title, &course.PriceMinor, &course.Currency,
		&course.Published, &course.StudentsCount, &course.CreatedAt, &course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Course{}, domain.ErrCourseNotFound
		}
		return domain.Course{}, fmt.Errorf("select course: %w", err)
	}

	return course, nil
}

func (r *CourseRepository) PublishedByIDs(ids []string) ([]domain.Course, error) {
	if len(ids) == 0 {
		return []domain.Course{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, price_minor, currency, published, students_count, created_at, updated_at
		FROM courses
		WHERE id = ANY($1) AND published
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select published courses: %w", err)
	}
	defer rows.Close()

	courses := make([]domain.Course, 0, len(ids))
	for rows.Next() {
		var course domain.Course
		if err := rows.Scan(
			&course.ID, &course.Title, &course.PriceMinor, &course.Currency,
			&course.Published, &course.StudentsCount, &course.CreatedAt, &course.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}

	return courses, nil
}

// Save вставляет либо обновляет курс целиком.
func (r *CourseRepository) Save(course domain.Course) error {
	if course.ID == "" {
		return domain.ErrItemCourseRequired
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (
			id, title, price_minor, currency, published, students_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    price_minor = EXCLUDED.price_minor,
		    currency = EXCLUDED.currency,
		    published = EXCLUDED.published,
		    updated_at = EXCLUDED.updated_at
	`,
		course.ID, course.Title, course.PriceMinor, course.Currency,
		course.Published, course.StudentsCount, course.CreatedAt, course.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save course: %w", err)
	}

	return nil
}

var _ domain.CourseCatalog = (*CourseRepository)(nil)
