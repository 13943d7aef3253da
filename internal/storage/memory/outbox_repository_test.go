package memory_test

import (
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestOutboxRepository_EnqueuePullMark(t *testing.T) {
	repo := memory.NewOutboxRepository()

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.placed",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated message id")
	}

	second, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-2",
		EventType:     "order.placed",
	})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}

	if err := repo.MarkSent("unknown"); err == nil {
		t.Fatal("expected error for unknown message id")
	}
}
