package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type orderRepositoryInMemory struct {
	store *Store
}

// Place атомарно записывает заказ: под одним мьютексом сначала проверяем
// резерв по каждой строке, потом применяем декременты и вставляем заказ.
// Ни одна мутация не происходит, пока не прошли все проверки, поэтому
// частичного состояния не бывает.
func (r *orderRepositoryInMemory) Place(plan domain.OrderPlan, ownerID string) (domain.Order, error) {
	if len(plan.Lines) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// Фаза проверки: авторитетная сверка остатков внутри "транзакции".
	// Сборщик уже проверял сток, но он мог измениться между сборкой и записью.
	for _, line := range plan.Lines {
		if line.Quantity <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
		product, ok := r.store.products[line.Product.ID]
		if !ok || !product.Active {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, line.Product.ID)
		}
		if product.Stock < line.Quantity {
			return domain.Order{}, fmt.Errorf("%w: product %s: requested %d, available %d",
				domain.ErrInsufficientStock, product.ID, line.Quantity, product.Stock)
		}
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Status:    domain.OrderStatusPending,
		Total:     plan.Total,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Фаза записи: декременты и позиции в порядке строк плана.
	for _, line := range plan.Lines {
		product := r.store.products[line.Product.ID]
		product.Stock -= line.Quantity
		product.UpdatedAt = now
		r.store.products[line.Product.ID] = product

		order.Items = append(order.Items, domain.OrderItem{
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Subtotal:  line.Subtotal,
			CreatedAt: now,
		})
	}

	r.store.orders[order.ID] = order
	return order, nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	r.store.orders[order.ID] = order
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
