package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository создаёт PostgreSQL-реализацию EnrollmentRepository.
func NewEnrollmentRepository(store *Store) domain.EnrollmentRepository {
	return &enrollmentRepository{db: store.DB()}
}

func (r *enrollmentRepository) GetByUserCourse(userID, courseID string) (domain.Enrollment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, course_id, order_id, status, progress_percent,
		       certificate_url, started_at, completed_at
		FROM enrollments
		WHERE user_id = $1 AND course_id = $2
	`, userID, courseID)

	enrollment, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Enrollment{}, domain.ErrEnrollmentNotFound
		}
		return domain.Enrollment{}, err
	}

	return enrollment, nil
}

func (r *enrollmentRepository) ListByUser(userID string) ([]domain.Enrollment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, course_id, order_id, status, progress_percent,
		       certificate_url, started_at, completed_at
		FROM enrollments
		WHERE user_id = $1
		ORDER BY started_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]domain.Enrollment, 0)
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}

	return enrollments, nil
}

func scanEnrollment(row rowScanner) (domain.Enrollment, error) {
	var (
		enrollment  domain.Enrollment
		status      string
		orderID     sql.NullString
		completedAt sql.NullTime
	)

	if err := row.Scan(
		&enrollment.ID, &enrollment.UserID, &enrollment.CourseID, &orderID,
		&status, &enrollment.ProgressPercent, &enrollment.CertificateURL,
		&enrollment.StartedAt, &completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Enrollment{}, err
		}
		return domain.Enrollment{}, fmt.Errorf("scan enrollment: %w", err)
	}

	enrollment.Status = domain.EnrollmentStatus(status)
	if orderID.Valid {
		enrollment.OrderID = orderID.String
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		enrollment.CompletedAt = &t
	}

	return enrollment, nil
}

var _ domain.EnrollmentRepository = (*enrollmentRepository)(nil)
