package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// historyRepositoryInMemory хранит историю смен статуса заказов.
type historyRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.StatusEvent
}

// NewHistoryRepository создаёт in-memory реализацию HistoryRepository.
func NewHistoryRepository() domain.HistoryRepository {
	return &historyRepositoryInMemory{events: make(map[string][]domain.StatusEvent)}
}

// Append добавляет событие в историю заказа.
func (r *historyRepositoryInMemory) Append(event domain.StatusEvent) error {
	if event.OrderID == "" {
		return domain.ErrOrderIDMissing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.OrderID] = append(r.events[event.OrderID], event)
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *historyRepositoryInMemory) List(orderID string) ([]domain.StatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.StatusEvent, len(events))
	copy(result, events)

	sort.Slice(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})

	return result, nil
}

var _ domain.HistoryRepository = (*historyRepositoryInMemory)(nil)
