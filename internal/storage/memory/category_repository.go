package memory

import (
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type categoryRepositoryInMemory struct {
	store *Store
}

// Create сохраняет новую категорию; имя должно быть уникальным.
func (r *categoryRepositoryInMemory) Create(category domain.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return domain.ErrCategoryNameTaken
		}
	}
	r.store.categories[category.ID] = category
	return nil
}

// Get возвращает категорию или ErrCategoryNotFound.
func (r *categoryRepositoryInMemory) Get(id string) (domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	category, ok := r.store.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return category, nil
}

// List возвращает все категории в стабильном порядке.
func (r *categoryRepositoryInMemory) List() ([]domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.store.categories))
	for _, category := range r.store.categories {
		result = append(result, category)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// Delete удаляет категорию, если на неё не ссылаются товары.
func (r *categoryRepositoryInMemory) Delete(id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	for _, product := range r.store.products {
		if product.CategoryID == id {
			return domain.ErrCategoryInUse
		}
	}
	delete(r.store.categories, id)
	return nil
}

var _ domain.CategoryRepository = (*categoryRepositoryInMemory)(nil)
