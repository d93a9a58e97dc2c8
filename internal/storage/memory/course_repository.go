package memory

import (
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// CourseRepository — in-memory каталог курсов. Как и PostgreSQL-версия,
// помимо читающего интерфейса ядра умеет сохранять курсы.
type CourseRepository struct {
	store *Store
}

// NewCourseRepository возвращает in-memory каталог курсов.
func NewCourseRepository(store *Store) *CourseRepository {
	return &CourseRepository{store: store}
}

func (r *CourseRepository) Get(id string) (domain.Course, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	course, ok := r.store.courses[id]
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return course, nil
}

func (r *CourseRepository) PublishedByIDs(ids []string) ([]domain.Course, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	courses := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		course, ok := r.store.courses[id]
		if !ok || !course.Published {
			continue
		}
		courses = append(courses, course)
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

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.courses[course.ID]; ok {
		course.StudentsCount = existing.StudentsCount
		course.CreatedAt = existing.CreatedAt
	}
	r.store.courses[course.ID] = course

	return nil
}

var _ domain.CourseCatalog = (*CourseRepository)(nil)
