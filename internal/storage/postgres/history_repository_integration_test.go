package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestHistoryRepository_Postgres(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewHistoryRepository(store)

	orderID := uuid.NewString()
	now := time.Now().UTC().Round(time.Microsecond)

	events := []domain.StatusEvent{
		{OrderID: orderID, Status: domain.OrderStatusPending, Occurred: now.Add(-2 * time.Minute)},
		{OrderID: orderID, Status: domain.OrderStatusProcessing, Reason: "picking", Occurred: now.Add(-time.Minute)},
		{OrderID: orderID, Status: domain.OrderStatusCompleted, Occurred: now},
	}
	for _, event := range events {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	// Событие с нулевым временем получает текущее.
	if err := repo.Append(domain.StatusEvent{OrderID: uuid.NewString(), Status: domain.OrderStatusPending}); err != nil {
		t.Fatalf("append event without time: %v", err)
	}

	got, err := repo.List(orderID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Status != domain.OrderStatusPending || got[2].Status != domain.OrderStatusCompleted {
		t.Fatalf("events out of order: %+v", got)
	}
	if got[1].Reason != "picking" {
		t.Fatalf("unexpected reason: %q", got[1].Reason)
	}

	empty, err := repo.List(uuid.NewString())
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no events, got %d", len(empty))
	}
}
