package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestIdempotencyRepository_Lifecycle(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	record, err := repo.CreateProcessing("key-1", "hash-1", ttl)
	if err != nil {
		t.Fatalf("create processing: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("status = %s, want processing", record.Status)
	}

	// Повтор с тем же хэшом — AlreadyExists, с другим — HashMismatch.
	if _, err := repo.CreateProcessing("key-1", "hash-1", ttl); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if _, err := repo.CreateProcessing("key-1", "hash-2", ttl); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}

	if err := repo.MarkDone("key-1", []byte(`{"ok":true}`), 200); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	stored, err := repo.Get("key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.IdempotencyStatusDone || stored.HTTPStatus != 200 {
		t.Fatalf("unexpected record: %+v", stored)
	}
	if string(stored.ResponseBody) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", stored.ResponseBody)
	}
}

func TestIdempotencyRepository_DeleteExpired(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing("old", "hash", past); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if _, err := repo.CreateProcessing("fresh", "hash", future); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	removed, err := repo.DeleteExpired(time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := repo.Get("old"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected old record gone, got %v", err)
	}
	if _, err := repo.Get("fresh"); err != nil {
		t.Fatalf("fresh record should remain: %v", err)
	}
}

func TestIdempotencyRepository_Validation(t *testing.T) {
	repo := memory.NewIdempotencyRepository()

	if _, err := repo.CreateProcessing("", "hash", time.Time{}); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
	if _, err := repo.CreateProcessing("key", "", time.Time{}); !errors.Is(err, domain.ErrIdempotencyRequestHashRequired) {
		t.Fatalf("expected ErrIdempotencyRequestHashRequired, got %v", err)
	}
	if err := repo.MarkDone("missing", nil, 200); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected ErrIdempotencyKeyNotFound, got %v", err)
	}
}
