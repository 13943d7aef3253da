package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepositoryInMemory struct {
	store *Store
}

// Create сохраняет новый товар, проверяя ссылку на категорию.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.categories[product.CategoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	r.store.products[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// List возвращает товары, опционально отфильтрованные по категории.
func (r *productRepositoryInMemory) List(categoryID string) ([]domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.store.products))
	for _, product := range r.store.products {
		if categoryID != "" && product.CategoryID != categoryID {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// Update перезаписывает товар, проверяя ссылку на категорию.
func (r *productRepositoryInMemory) Update(product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	if _, ok := r.store.categories[product.CategoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	r.store.products[product.ID] = product
	return nil
}

// Delete удаляет товар.
func (r *productRepositoryInMemory) Delete(id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.store.products, id)
	return nil
}

// Restock возвращает qty единиц на остаток товара.
func (r *productRepositoryInMemory) Restock(productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	r.store.products[productID] = product
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
