package memory

import (
	"time"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type timelineRepositoryInMemory struct {
	store *Store
}

// NewTimelineRepository возвращает in-memory реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepositoryInMemory{store: store}
}

func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.timeline[event.OrderID] = append(r.store.timeline[event.OrderID], event)
	return nil
}

func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := r.store.timeline[orderID]
	return append([]domain.TimelineEvent(nil), events...), nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
