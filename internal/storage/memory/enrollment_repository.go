package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type enrollmentRepositoryInMemory struct {
	store *Store
}

// NewEnrollmentRepository возвращает in-memory реализацию EnrollmentRepository.
func NewEnrollmentRepository(store *Store) domain.EnrollmentRepository {
	return &enrollmentRepositoryInMemory{store: store}
}

func (r *enrollmentRepositoryInMemory) GetByUserCourse(userID, courseID string) (domain.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	enrollment, ok := r.store.enrollments[enrollmentKey(userID, courseID)]
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return enrollment, nil
}

func (r *enrollmentRepositoryInMemory) ListByUser(userID string) ([]domain.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Enrollment, 0)
	for _, enrollment := range r.store.enrollments {
		if enrollment.UserID != userID {
			continue
		}
		result = append(result, enrollment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

var _ domain.EnrollmentRepository = (*enrollmentRepositoryInMemory)(nil)
