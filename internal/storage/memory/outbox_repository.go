package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepositoryInMemory — простое in-memory хранилище для transactional outbox.
type outboxRepositoryInMemory struct {
	mu      sync.RWMutex
	records map[string]*outboxRecord
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() domain.OutboxRepository {
	return &outboxRepositoryInMemory{records: make(map[string]*outboxRecord)}
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его идентификатор.
func (r *outboxRepositoryInMemory) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    "pending",
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке создания.
func (r *outboxRepositoryInMemory) PullPending(limit int) ([]domain.OutboxMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]*outboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status == "pending" {
			pending = append(pending, rec)
		}
	}
	// Стабилизируем порядок для предсказуемой публикации.
	for i := 1; i < len(pending); i++ {
		for j := i; j > 0 && pending[j].createdAt.Before(pending[j-1].createdAt); j-- {
			pending[j], pending[j-1] = pending[j-1], pending[j]
		}
	}

	result := make([]domain.OutboxMessage, 0, limit)
	for _, rec := range pending {
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}

	return result, nil
}

// Stats возвращает размер backlog и возраст самого старого pending-сообщения.
func (r *outboxRepositoryInMemory) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.OutboxStats{}
	for _, rec := range r.records {
		if rec.status != "pending" {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepositoryInMemory) MarkSent(id string) error {
	return r.markStatus(id, "sent")
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepositoryInMemory) MarkFailed(id string) error {
	return r.markStatus(id, "failed")
}

func (r *outboxRepositoryInMemory) markStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
