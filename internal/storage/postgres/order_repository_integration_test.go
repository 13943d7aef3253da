package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestOrderRepository_PostgresPlaceGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	products := NewProductRepository(store)

	p1 := seedProductForIntegrationTest(t, store, "10.00", 5)
	p2 := seedProductForIntegrationTest(t, store, "3.50", 8)

	plan := planForIntegrationTest([]domain.Product{p1, p2}, []int32{2, 1})

	placed, err := repo.Place(plan, "user-1")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placed.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected status: %s", placed.Status)
	}
	if !placed.Total.Equal(decimal.RequireFromString("23.50")) {
		t.Fatalf("unexpected total: %s", placed.Total)
	}

	// Остатки списаны в той же транзакции.
	after1, err := products.Get(p1.ID)
	if err != nil {
		t.Fatalf("get product after place: %v", err)
	}
	if after1.Stock != 3 {
		t.Fatalf("unexpected stock after place: %d", after1.Stock)
	}

	got, err := repo.Get(placed.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.UserID != "user-1" || len(got.Items) != 2 {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if !got.Total.Equal(placed.Total) {
		t.Fatalf("total mismatch: got=%s want=%s", got.Total, placed.Total)
	}

	if _, err := repo.Place(planForIntegrationTest([]domain.Product{p2}, []int32{1}), "user-1"); err != nil {
		t.Fatalf("place second order: %v", err)
	}

	listed, err := repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	got.Status = domain.OrderStatusProcessing
	got.UpdatedAt = time.Now().UTC().Round(time.Microsecond)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(placed.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected status after save: %s", updated.Status)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresInsufficientStockRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	products := NewProductRepository(store)

	p1 := seedProductForIntegrationTest(t, store, "10.00", 5)
	p2 := seedProductForIntegrationTest(t, store, "2.00", 1)

	// p1 резервируется первым, p2 не хватает: транзакция обязана откатиться
	// целиком, включая уже списанный p1.
	plan := planForIntegrationTest([]domain.Product{p1, p2}, []int32{2, 3})

	_, err := repo.Place(plan, "user-9")
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	after1, err := products.Get(p1.ID)
	if err != nil {
		t.Fatalf("get p1: %v", err)
	}
	if after1.Stock != 5 {
		t.Fatalf("p1 stock must be untouched, got %d", after1.Stock)
	}

	after2, err := products.Get(p2.ID)
	if err != nil {
		t.Fatalf("get p2: %v", err)
	}
	if after2.Stock != 1 {
		t.Fatalf("p2 stock must be untouched, got %d", after2.Stock)
	}

	orders, err := repo.ListByUser("user-9", 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("no orders must survive a failed placement, got %d", len(orders))
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	if _, err := repo.Get("00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if _, err := repo.Place(domain.OrderPlan{}, "user-1"); !errors.Is(err, domain.ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}

	p1 := seedProductForIntegrationTest(t, store, "10.00", 5)
	placed, err := repo.Place(planForIntegrationTest([]domain.Product{p1}, []int32{1}), "user-1")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	stale := placed
	stale.Status = domain.OrderStatusProcessing
	stale.UpdatedAt = time.Now().UTC().Round(time.Microsecond)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale save, got %v", err)
	}

	missing := placed
	missing.ID = "00000000-0000-0000-0000-000000000001"
	if err := repo.Save(missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
	if !isForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("expected foreign key violation for code 23503")
	}
	if !isCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatal("expected check violation for code 23514")
	}
}
