package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// fulfillmentStoreInMemory исполняет заказ под общей блокировкой Store:
// конкурирующие вызовы сериализуются, побочные эффекты видны атомарно.
type fulfillmentStoreInMemory struct {
	store *Store
}

// NewFulfillmentStore возвращает in-memory реализацию FulfillmentStore.
func NewFulfillmentStore(store *Store) domain.FulfillmentStore {
	return &fulfillmentStoreInMemory{store: store}
}

func (s *fulfillmentStoreInMemory) Complete(ref domain.OrderRef) (domain.FulfillmentResult, error) {
	if ref.Empty() {
		return domain.FulfillmentResult{}, domain.ErrOrderNotFound
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	order, ok := s.findOrderLocked(ref)
	if !ok {
		return domain.FulfillmentResult{}, domain.ErrOrderNotFound
	}

	if order.Status != domain.OrderStatusPending {
		return domain.FulfillmentResult{Order: cloneOrder(order), AlreadyProcessed: true}, nil
	}

	now := time.Now().UTC()
	order.Status = domain.OrderStatusCompleted
	order.PaidAt = &now
	order.UpdatedAt = now
	s.store.orders[order.ID] = cloneOrder(order)

	granted := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if s.grantLocked(order.UserID, item.CourseID, order.ID, now) {
			granted = append(granted, item.CourseID)
		}
		if cart, ok := s.store.carts[order.UserID]; ok {
			delete(cart, item.CourseID)
		}
	}

	return domain.FulfillmentResult{Order: cloneOrder(order), GrantedCourseIDs: granted}, nil
}

func (s *fulfillmentStoreInMemory) Grant(userID, courseID, orderID string) (bool, error) {
	if userID == "" {
		return false, domain.ErrUserRequired
	}
	if courseID == "" {
		return false, domain.ErrItemCourseRequired
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	return s.grantLocked(userID, courseID, orderID, time.Now().UTC()), nil
}

// grantLocked создаёт enrollment и инкрементирует счётчик курса.
// Существующая запись делает вызов no-op. Вызывается только под mu.
func (s *fulfillmentStoreInMemory) grantLocked(userID, courseID, orderID string, now time.Time) bool {
	key := enrollmentKey(userID, courseID)
	if _, exists := s.store.enrollments[key]; exists {
		return false
	}

	s.store.enrollments[key] = domain.Enrollment{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		OrderID:   orderID,
		Status:    domain.EnrollmentStatusActive,
		StartedAt: now,
	}

	if course, ok := s.store.courses[courseID]; ok {
		course.StudentsCount++
		course.UpdatedAt = now
		s.store.courses[courseID] = course
	}

	return true
}

func (s *fulfillmentStoreInMemory) findOrderLocked(ref domain.OrderRef) (domain.Order, bool) {
	if ref.OrderID != "" {
		order, ok := s.store.orders[ref.OrderID]
		return order, ok
	}
	for _, order := range s.store.orders {
		if order.SessionID != "" && order.SessionID == ref.SessionID {
			return order, true
		}
	}
	return domain.Order{}, false
}

var _ domain.FulfillmentStore = (*fulfillmentStoreInMemory)(nil)
